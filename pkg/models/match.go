package models

// MatchMethod records how a confidence score was reached.
type MatchMethod string

const (
	MethodDefinitive    MatchMethod = "definitive"
	MethodMultiSignal   MatchMethod = "multi_signal"
	MethodLLM           MatchMethod = "llm"
	MethodContradiction MatchMethod = "contradiction"
	MethodNoSignals     MatchMethod = "no_signals"
)

// Signal is one atomic piece of match evidence between a scraped record
// and a candidate entity. Signals are ephemeral; they are persisted only
// inside decision log and review queue rows.
type Signal struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Weight      float64 `json:"weight"`
	Explanation string  `json:"explanation"`
}

// MatchScore aggregates the signals for one (record, candidate) pair.
type MatchScore struct {
	Confidence  float64     `json:"confidence"`
	Signals     []Signal    `json:"signals"`
	Method      MatchMethod `json:"method"`
	Explanation string      `json:"explanation"`
}

// PositiveSignals counts signals with a value above zero.
func (m MatchScore) PositiveSignals() int {
	count := 0
	for _, s := range m.Signals {
		if s.Value > 0 {
			count++
		}
	}
	return count
}

// MatchedFields lists the signal names that contributed positive evidence.
func (m MatchScore) MatchedFields() []string {
	fields := make([]string, 0, len(m.Signals))
	for _, s := range m.Signals {
		if s.Value > 0 {
			fields = append(fields, s.Name)
		}
	}
	return fields
}

// MatchResult is the final output of one resolution attempt. Exactly one
// of {Entity != nil && !NeedsReview, NeedsReview, CreatedNew} describes
// the outcome.
type MatchResult struct {
	Entity      *Entity     `json:"entity,omitempty"`
	Confidence  float64     `json:"confidence"`
	MatchedOn   []string    `json:"matched_on,omitempty"`
	Method      MatchMethod `json:"method"`
	CreatedNew  bool        `json:"created_new"`
	NeedsReview bool        `json:"needs_review"`
}

// ArbitrationVerdict is the parsed JSON verdict returned by the LLM
// arbitrator.
type ArbitrationVerdict struct {
	SameEntity bool    `json:"same_entity"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}
