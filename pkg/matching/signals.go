package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/briar/pkg/extractor"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/normalizers"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// AgentServiceChecker reports whether a normalized registered-agent name
// belongs to a known commercial registered-agent service.
type AgentServiceChecker interface {
	IsKnownAgentService(ctx context.Context, normalizedName string) (bool, error)
}

// Signal weights. Formal-source names are near ground truth; informal
// mentions are noisy, so their name weight drops sharply.
const (
	weightAddress         = 0.35
	weightPhone           = 0.30
	weightPeople          = 0.40
	weightEmailDomain     = 0.25
	weightRegisteredAgent = 0.30

	informalNameBoost = 0.85
)

var nameWeightBySource = map[models.SourceType]float64{
	models.SourceSunbiz:            0.50,
	models.SourcePropertyDeed:      0.45,
	models.SourcePropertyAppraiser: 0.40,
	models.SourceCityPermit:        0.35,
	models.SourceCountyPermit:      0.35,
	models.SourceManualEntry:       0.40,
	models.SourceNewsArticle:       0.15,
	models.SourceSocialMedia:       0.10,
}

const defaultNameWeight = 0.30

// MatcherConfig tunes aggregation behavior.
type MatcherConfig struct {
	// AutoAcceptThreshold is only used here to place the single-signal
	// cap just below it.
	AutoAcceptThreshold float64
}

// Matcher scores one (record, candidate) pair into a MatchScore.
type Matcher struct {
	scorer        *Scorer
	extractor     *extractor.Extractor
	agentServices AgentServiceChecker
	config        MatcherConfig
	logger        ectologger.Logger
}

// NewMatcher creates a Matcher. agentServices may be nil, in which case
// the registered-agent signal is emitted without the service lookup.
func NewMatcher(agentServices AgentServiceChecker, config MatcherConfig, logger ectologger.Logger) *Matcher {
	return &Matcher{
		scorer:        NewScorer(),
		extractor:     extractor.New(),
		agentServices: agentServices,
		config:        config,
		logger:        logger,
	}
}

// ScoreMatch computes the weighted multi-signal confidence between
// extracted features and one candidate entity.
//
// A document-number contradiction short-circuits everything: legal
// identifiers are ground truth, and a mismatch proves non-identity even
// when names and addresses coincide (the name-reused-after-dissolution
// case).
func (m *Matcher) ScoreMatch(ctx context.Context, features models.Features, source models.SourceContext, candidate *models.Entity) models.MatchScore {
	ctx, span := tracing.StartSpan(ctx, "matching.Matcher.ScoreMatch")
	defer span.End()

	candFeatures := m.candidateFeatures(candidate)

	if features.DocumentNumber != "" && candFeatures.DocumentNumber != "" &&
		features.DocumentNumber != candFeatures.DocumentNumber {
		return models.MatchScore{
			Confidence: 0.0,
			Method:     models.MethodContradiction,
			Signals: []models.Signal{{
				Name:   "document_number_contradiction",
				Value:  0.0,
				Weight: 1.0,
				Explanation: fmt.Sprintf("document numbers differ: %s vs %s",
					features.DocumentNumber, candFeatures.DocumentNumber),
			}},
			Explanation: "conflicting document numbers prove non-identity",
		}
	}

	signals := make([]models.Signal, 0, 6)

	if sig, ok := m.nameSignal(features, source, candidate); ok {
		signals = append(signals, sig)
	}
	if sig, ok := m.addressSignal(features, candFeatures); ok {
		signals = append(signals, sig)
	}
	if sig, ok := m.phoneSignal(features, candFeatures); ok {
		signals = append(signals, sig)
	}
	if sig, ok := m.peopleSignal(features, candFeatures); ok {
		signals = append(signals, sig)
	}
	if sig, ok := m.emailDomainSignal(features, candFeatures); ok {
		signals = append(signals, sig)
	}
	if sig, ok := m.registeredAgentSignal(ctx, features, candFeatures); ok {
		signals = append(signals, sig)
	}

	return m.aggregate(signals)
}

// candidateFeatures projects a stored entity into the same feature shape
// as a scraped record, so both sides compare symmetrically.
func (m *Matcher) candidateFeatures(candidate *models.Entity) models.Features {
	features := m.extractor.ExtractAllFeatures(candidate.Attributes.Data)
	features.OfficialName = candidate.CanonicalName
	if features.PrincipalAddress == "" && candidate.Address != nil {
		features.PrincipalAddress = *candidate.Address
	}
	return features
}

// nameSignal compares normalized names. Informal channels get lenient
// scoring: a substring containment boosts to at least 0.85, and the
// significant-word overlap ratio can raise the score further, because
// news and social mentions routinely abbreviate formal names.
func (m *Matcher) nameSignal(features models.Features, source models.SourceContext, candidate *models.Entity) (models.Signal, bool) {
	if features.OfficialName == "" || candidate.CanonicalName == "" {
		return models.Signal{}, false
	}

	sourceName := normalizers.NormalizeName(features.OfficialName)
	candName := normalizers.NormalizeName(candidate.CanonicalName)
	if sourceName == "" || candName == "" {
		return models.Signal{}, false
	}

	var value float64
	explanation := "trigram similarity of normalized names"
	if sourceName == candName {
		value = 1.0
		explanation = "exact normalized name match"
	} else {
		value = m.scorer.TrigramSimilarity(sourceName, candName)
		if source.SourceType.IsInformal() {
			if containsEither(sourceName, candName) && value < informalNameBoost {
				value = informalNameBoost
				explanation = "substring name match from informal source"
			}
			if overlap := m.scorer.WordOverlap(sourceName, candName); overlap > value {
				value = overlap
				explanation = "significant-word overlap from informal source"
			}
		}
	}

	weight, ok := nameWeightBySource[source.SourceType]
	if !ok {
		weight = defaultNameWeight
	}

	return models.Signal{
		Name:        "name_similarity",
		Value:       value,
		Weight:      weight,
		Explanation: explanation,
	}, true
}

func (m *Matcher) addressSignal(features, candFeatures models.Features) (models.Signal, bool) {
	sourceAddr := normalizers.NormalizeAddress(features.BestAddress())
	if sourceAddr == "" {
		return models.Signal{}, false
	}

	best := 0.0
	for _, addr := range []string{candFeatures.PrincipalAddress, candFeatures.MailingAddress} {
		if addr == "" {
			continue
		}
		if score := m.scorer.AddressSimilarity(sourceAddr, normalizers.NormalizeAddress(addr)); score > best {
			best = score
		}
	}
	if candFeatures.PrincipalAddress == "" && candFeatures.MailingAddress == "" {
		return models.Signal{}, false
	}

	return models.Signal{
		Name:        "address_match",
		Value:       best,
		Weight:      weightAddress,
		Explanation: "normalized address similarity",
	}, true
}

func (m *Matcher) phoneSignal(features, candFeatures models.Features) (models.Signal, bool) {
	if features.Phone == "" || candFeatures.Phone == "" {
		return models.Signal{}, false
	}

	value := m.scorer.ExactMatch(
		normalizers.NormalizePhone(features.Phone),
		normalizers.NormalizePhone(candFeatures.Phone),
		true,
	)

	return models.Signal{
		Name:        "phone_match",
		Value:       value,
		Weight:      weightPhone,
		Explanation: "normalized phone equality",
	}, true
}

func (m *Matcher) peopleSignal(features, candFeatures models.Features) (models.Signal, bool) {
	sourcePeople := normalizePeople(features.People())
	candPeople := normalizePeople(candFeatures.People())
	if len(sourcePeople) == 0 || len(candPeople) == 0 {
		return models.Signal{}, false
	}

	value := m.scorer.OverlapCoefficient(sourcePeople, candPeople)

	return models.Signal{
		Name:        "owner_similarity",
		Value:       value,
		Weight:      weightPeople,
		Explanation: "overlap coefficient of owners, principals and officers",
	}, true
}

func (m *Matcher) emailDomainSignal(features, candFeatures models.Features) (models.Signal, bool) {
	sourceDomain := normalizers.EmailDomain(features.Email)
	candDomain := normalizers.EmailDomain(candFeatures.Email)
	if sourceDomain == "" || candDomain == "" {
		return models.Signal{}, false
	}

	value := m.scorer.ExactMatch(sourceDomain, candDomain, true)

	return models.Signal{
		Name:        "email_domain_match",
		Value:       value,
		Weight:      weightEmailDomain,
		Explanation: "email domain equality",
	}, true
}

// registeredAgentSignal is only emitted when both agents are equal AND
// the agent is not a known commercial registered-agent service. A bulk
// filing intermediary is shared by thousands of unrelated companies and
// carries zero identity information.
func (m *Matcher) registeredAgentSignal(ctx context.Context, features, candFeatures models.Features) (models.Signal, bool) {
	if features.RegisteredAgent == "" || candFeatures.RegisteredAgent == "" {
		return models.Signal{}, false
	}

	sourceAgent := normalizers.NormalizePersonName(features.RegisteredAgent)
	candAgent := normalizers.NormalizePersonName(candFeatures.RegisteredAgent)
	if sourceAgent == "" || sourceAgent != candAgent {
		return models.Signal{}, false
	}

	if m.agentServices != nil {
		known, err := m.agentServices.IsKnownAgentService(ctx, sourceAgent)
		if err != nil {
			// suppress rather than risk inflating confidence
			m.logger.WithContext(ctx).WithError(err).Warnf("agent service lookup failed for %q", sourceAgent)
			return models.Signal{}, false
		}
		if known {
			return models.Signal{}, false
		}
	}

	return models.Signal{
		Name:        "registered_agent_match",
		Value:       1.0,
		Weight:      weightRegisteredAgent,
		Explanation: "shared non-commercial registered agent",
	}, true
}

// aggregate computes the weighted average and applies the single-signal
// cap: one positive signal, however strong, is never enough for
// automatic acceptance.
func (m *Matcher) aggregate(signals []models.Signal) models.MatchScore {
	if len(signals) == 0 {
		return models.MatchScore{
			Confidence:  0.0,
			Method:      models.MethodNoSignals,
			Explanation: "no comparable fields between record and candidate",
		}
	}

	var weightedSum, totalWeight float64
	positives := 0
	for _, sig := range signals {
		weightedSum += sig.Value * sig.Weight
		totalWeight += sig.Weight
		if sig.Value > 0 {
			positives++
		}
	}

	confidence := 0.0
	if totalWeight > 0 {
		confidence = weightedSum / totalWeight
	}

	explanation := fmt.Sprintf("%d of %d signals positive", positives, len(signals))
	if positives == 1 {
		ceiling := m.config.AutoAcceptThreshold - 0.01
		if confidence > ceiling {
			confidence = ceiling
			explanation += "; capped: single-signal evidence is insufficient for auto-accept"
		}
	}

	return models.MatchScore{
		Confidence:  confidence,
		Signals:     signals,
		Method:      models.MethodMultiSignal,
		Explanation: explanation,
	}
}

func containsEither(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func normalizePeople(people []string) []string {
	out := make([]string, 0, len(people))
	for _, p := range people {
		if n := normalizers.NormalizePersonName(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}
