package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// weight of the LLM verdict when folded into the deterministic signals
const verdictWeight = 0.50

// Arbitrator asks an LLM for a second opinion on a medium-confidence
// match. It never blocks or fails a resolution: any timeout, transport
// error or malformed verdict degrades to the deterministic score.
type Arbitrator struct {
	client  Client
	timeout time.Duration
	logger  ectologger.Logger
}

// NewArbitrator creates an Arbitrator with a bounded call timeout.
func NewArbitrator(client Client, timeout time.Duration, logger ectologger.Logger) *Arbitrator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Arbitrator{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// Arbitrate presents both records side by side and folds the parsed
// verdict into the deterministic signals as one more weighted signal.
func (a *Arbitrator) Arbitrate(ctx context.Context, features models.Features, source models.SourceContext, candidate *models.Entity, deterministic models.MatchScore) models.MatchScore {
	ctx, span := tracing.StartSpan(ctx, "llm.Arbitrator.Arbitrate")
	defer span.End()

	log := a.logger.WithContext(ctx).WithFields(map[string]any{
		"method":              "Arbitrate",
		"candidate_entity_id": candidate.ID,
	})

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	prompt := buildPrompt(features, source, candidate, deterministic)

	response, err := a.client.Generate(callCtx, prompt)
	if err != nil {
		log.WithError(err).Warnf("llm arbitration failed; keeping deterministic score")
		return deterministic
	}

	verdict, err := parseVerdict(response)
	if err != nil {
		log.WithError(err).Warnf("llm verdict unparseable; keeping deterministic score")
		return deterministic
	}

	return foldVerdict(deterministic, verdict)
}

// foldVerdict layers the LLM verdict onto the deterministic signals and
// recomputes the weighted average.
func foldVerdict(deterministic models.MatchScore, verdict models.ArbitrationVerdict) models.MatchScore {
	value := 0.0
	if verdict.SameEntity {
		value = clamp01(verdict.Confidence)
	}

	signals := append([]models.Signal{}, deterministic.Signals...)
	signals = append(signals, models.Signal{
		Name:        "llm_verdict",
		Value:       value,
		Weight:      verdictWeight,
		Explanation: verdict.Reasoning,
	})

	var weightedSum, totalWeight float64
	for _, sig := range signals {
		weightedSum += sig.Value * sig.Weight
		totalWeight += sig.Weight
	}

	confidence := 0.0
	if totalWeight > 0 {
		confidence = weightedSum / totalWeight
	}

	return models.MatchScore{
		Confidence:  confidence,
		Signals:     signals,
		Method:      models.MethodLLM,
		Explanation: "llm verdict folded into deterministic signals",
	}
}

// buildPrompt renders both records side by side with the deterministic
// score and guidance on name variation and source reliability.
func buildPrompt(features models.Features, source models.SourceContext, candidate *models.Entity, deterministic models.MatchScore) string {
	var b strings.Builder

	b.WriteString("You are comparing two records to decide whether they describe the same real-world company or person.\n\n")

	b.WriteString("RECORD A (scraped record):\n")
	fmt.Fprintf(&b, "  source type: %s\n", source.SourceType)
	writeField(&b, "name", features.OfficialName)
	writeField(&b, "address", features.BestAddress())
	writeField(&b, "phone", features.Phone)
	writeField(&b, "owner", strings.Join(features.People(), "; "))

	b.WriteString("\nRECORD B (stored entity):\n")
	writeField(&b, "name", candidate.DisplayName)
	if candidate.Address != nil {
		writeField(&b, "address", *candidate.Address)
	}
	writeField(&b, "phone", candidate.Attribute("phone"))
	writeField(&b, "owner", strings.Join(candidate.AttributeList("owners"), "; "))

	fmt.Fprintf(&b, "\nA deterministic scorer rated this pair %.2f (%s).\n", deterministic.Confidence, deterministic.Explanation)

	b.WriteString(`
Consider:
- Companies are often mentioned by shortened names; "ABC Dev" in a news article may be "ABC DEVELOPMENT LLC" in the registry.
- Addresses may differ only in formatting or abbreviation.
- Official registry records are reliable; news and social mentions are noisy.

Respond with only a JSON object: {"same_entity": true|false, "confidence": 0.0-1.0, "reasoning": "one sentence"}`)

	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		value = "(not present)"
	}
	fmt.Fprintf(b, "  %s: %s\n", name, value)
}

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// parseVerdict pulls the first JSON object out of the response, which
// tolerates markdown fences and prose around the verdict.
func parseVerdict(response string) (models.ArbitrationVerdict, error) {
	jsonStr := jsonObject.FindString(response)
	if jsonStr == "" {
		return models.ArbitrationVerdict{}, fmt.Errorf("no JSON object in llm response")
	}

	var verdict models.ArbitrationVerdict
	if err := json.Unmarshal([]byte(jsonStr), &verdict); err != nil {
		return models.ArbitrationVerdict{}, fmt.Errorf("failed to parse llm verdict: %w", err)
	}

	verdict.Confidence = clamp01(verdict.Confidence)
	return verdict, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
