// Package matching computes multi-signal confidence scores between
// extracted record features and candidate entities.
package matching

import "strings"

// Scorer provides the string and set comparison primitives used by
// signal scoring. All inputs are expected to be pre-normalized.
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// ExactMatch returns 1.0 for exact match, 0.0 otherwise
func (s *Scorer) ExactMatch(a, b string, caseSensitive bool) float64 {
	if !caseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	if a == b {
		return 1.0
	}
	return 0.0
}

// TrigramSimilarity computes Jaccard similarity over character 3-grams,
// padded with boundary spaces the way pg_trgm pads (two leading, one
// trailing), so short strings still produce useful grams.
func (s *Scorer) TrigramSimilarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0.0
		}
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	aGrams := trigrams(a)
	bGrams := trigrams(b)

	intersection := 0
	for g := range aGrams {
		if bGrams[g] {
			intersection++
		}
	}
	union := len(aGrams) + len(bGrams) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func trigrams(s string) map[string]bool {
	padded := "  " + s + " "
	grams := make(map[string]bool, len(padded))
	runes := []rune(padded)
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = true
	}
	return grams
}

// WordOverlap computes Jaccard similarity over significant words (3+
// characters). Informal mentions abbreviate formal names, so shared
// significant words are evidence even when the full strings diverge.
func (s *Scorer) WordOverlap(a, b string) float64 {
	aWords := significantWords(a)
	bWords := significantWords(b)
	if len(aWords) == 0 || len(bWords) == 0 {
		return 0.0
	}

	intersection := 0
	for w := range aWords {
		if bWords[w] {
			intersection++
		}
	}
	union := len(aWords) + len(bWords) - intersection
	return float64(intersection) / float64(union)
}

func significantWords(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		if len(w) >= 3 {
			words[w] = true
		}
	}
	return words
}

// OverlapCoefficient computes |intersection| / min(|a|, |b|) over two
// string sets. A single shared person is strong evidence even when one
// side lists many more people, which is why this is not Jaccard.
func (s *Scorer) OverlapCoefficient(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	aSet := make(map[string]bool, len(a))
	for _, v := range a {
		aSet[v] = true
	}
	bSet := make(map[string]bool, len(b))
	for _, v := range b {
		bSet[v] = true
	}

	intersection := 0
	for v := range aSet {
		if bSet[v] {
			intersection++
		}
	}

	minSize := len(aSet)
	if len(bSet) < minSize {
		minSize = len(bSet)
	}
	if minSize == 0 {
		return 0.0
	}
	return float64(intersection) / float64(minSize)
}

// AddressSimilarity scores two normalized addresses: exact 1.0, substring
// containment 0.95, otherwise trigram similarity.
func (s *Scorer) AddressSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.95
	}
	return s.TrigramSimilarity(a, b)
}
