package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/logging"
	"github.com/Ramsey-B/briar/pkg/models"
)

type fakeClient struct {
	response string
	err      error
	delay    time.Duration
	prompt   string
}

func (f *fakeClient) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

func testCandidate() *models.Entity {
	addr := "123 MAIN ST"
	return &models.Entity{
		ID:            "ent-1",
		DisplayName:   "ABC DEVELOPMENT LLC",
		CanonicalName: "ABC DEVELOPMENT LLC",
		Address:       &addr,
		Attributes:    database.JSONB[map[string]any]{Data: map[string]any{"phone": "+13055551234"}},
	}
}

func deterministicScore() models.MatchScore {
	return models.MatchScore{
		Confidence: 0.70,
		Method:     models.MethodMultiSignal,
		Signals: []models.Signal{
			{Name: "name_similarity", Value: 0.85, Weight: 0.15, Explanation: "substring"},
		},
		Explanation: "1 of 1 signals positive",
	}
}

func TestArbitrate_FoldsVerdictIn(t *testing.T) {
	client := &fakeClient{response: `{"same_entity": true, "confidence": 0.95, "reasoning": "same company, abbreviated name"}`}
	a := NewArbitrator(client, time.Second, logging.NewNoop())

	score := a.Arbitrate(context.Background(), models.Features{OfficialName: "ABC Dev"},
		models.SourceContext{SourceType: models.SourceNewsArticle}, testCandidate(), deterministicScore())

	assert.Equal(t, models.MethodLLM, score.Method)
	require.Len(t, score.Signals, 2)
	assert.Equal(t, "llm_verdict", score.Signals[1].Name)
	assert.Equal(t, 0.95, score.Signals[1].Value)
	// (0.85*0.15 + 0.95*0.50) / 0.65
	assert.InDelta(t, 0.927, score.Confidence, 0.005)
}

func TestArbitrate_NegativeVerdictLowersScore(t *testing.T) {
	client := &fakeClient{response: `{"same_entity": false, "confidence": 0.9, "reasoning": "different parcels"}`}
	a := NewArbitrator(client, time.Second, logging.NewNoop())

	score := a.Arbitrate(context.Background(), models.Features{OfficialName: "ABC Dev"},
		models.SourceContext{SourceType: models.SourceNewsArticle}, testCandidate(), deterministicScore())

	require.Len(t, score.Signals, 2)
	assert.Equal(t, 0.0, score.Signals[1].Value)
	assert.Less(t, score.Confidence, 0.70)
}

func TestArbitrate_ToleratesMarkdownFences(t *testing.T) {
	client := &fakeClient{response: "Here is my analysis:\n```json\n{\"same_entity\": true, \"confidence\": 0.9, \"reasoning\": \"ok\"}\n```"}
	a := NewArbitrator(client, time.Second, logging.NewNoop())

	score := a.Arbitrate(context.Background(), models.Features{},
		models.SourceContext{}, testCandidate(), deterministicScore())

	assert.Equal(t, models.MethodLLM, score.Method)
}

func TestArbitrate_ErrorKeepsDeterministicScore(t *testing.T) {
	client := &fakeClient{err: assert.AnError}
	a := NewArbitrator(client, time.Second, logging.NewNoop())

	deterministic := deterministicScore()
	score := a.Arbitrate(context.Background(), models.Features{},
		models.SourceContext{}, testCandidate(), deterministic)

	assert.Equal(t, deterministic, score)
}

func TestArbitrate_MalformedJSONKeepsDeterministicScore(t *testing.T) {
	client := &fakeClient{response: "I cannot decide."}
	a := NewArbitrator(client, time.Second, logging.NewNoop())

	deterministic := deterministicScore()
	score := a.Arbitrate(context.Background(), models.Features{},
		models.SourceContext{}, testCandidate(), deterministic)

	assert.Equal(t, deterministic, score)
}

func TestArbitrate_TimeoutKeepsDeterministicScore(t *testing.T) {
	client := &fakeClient{response: `{"same_entity": true, "confidence": 1.0, "reasoning": "x"}`, delay: 200 * time.Millisecond}
	a := NewArbitrator(client, 10*time.Millisecond, logging.NewNoop())

	deterministic := deterministicScore()
	score := a.Arbitrate(context.Background(), models.Features{},
		models.SourceContext{}, testCandidate(), deterministic)

	assert.Equal(t, deterministic, score)
}

func TestArbitrate_PromptContainsBothRecords(t *testing.T) {
	client := &fakeClient{response: `{"same_entity": true, "confidence": 0.9, "reasoning": "ok"}`}
	a := NewArbitrator(client, time.Second, logging.NewNoop())

	a.Arbitrate(context.Background(), models.Features{OfficialName: "ABC Dev", Phone: "(305) 555-1234"},
		models.SourceContext{SourceType: models.SourceNewsArticle}, testCandidate(), deterministicScore())

	assert.Contains(t, client.prompt, "ABC Dev")
	assert.Contains(t, client.prompt, "ABC DEVELOPMENT LLC")
	assert.Contains(t, client.prompt, "news_article")
	assert.Contains(t, client.prompt, "same_entity")
}

func TestParseVerdict_ClampsConfidence(t *testing.T) {
	verdict, err := parseVerdict(`{"same_entity": true, "confidence": 1.7, "reasoning": "x"}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, verdict.Confidence)
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{Provider: "mystery"})
	assert.Error(t, err)
}
