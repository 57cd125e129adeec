package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrigramSimilarity(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.TrigramSimilarity("ACME HOLDINGS", "ACME HOLDINGS"))
	assert.Equal(t, 0.0, s.TrigramSimilarity("", "ACME"))
	assert.Equal(t, 0.0, s.TrigramSimilarity("", ""))

	// shared prefix scores above zero but below exact
	sim := s.TrigramSimilarity("ACME HOLDINGS", "ACME HOLDING CO")
	assert.Greater(t, sim, 0.4)
	assert.Less(t, sim, 1.0)

	// unrelated names score near zero
	assert.Less(t, s.TrigramSimilarity("ACME HOLDINGS", "ZENITH PROPERTIES"), 0.1)
}

func TestWordOverlap(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.WordOverlap("ACME HOLDINGS", "ACME HOLDINGS"))
	assert.Equal(t, 0.0, s.WordOverlap("", "ACME"))

	// short words (under 3 chars) are ignored
	assert.Equal(t, 1.0, s.WordOverlap("ACME OF FL", "ACME"))

	// half the significant words shared
	assert.InDelta(t, 1.0/3.0, s.WordOverlap("ACME HOLDINGS", "ACME PROPERTIES"), 0.001)
}

func TestOverlapCoefficient(t *testing.T) {
	s := NewScorer()

	// a single shared person against a larger list is full-strength evidence
	assert.Equal(t, 1.0, s.OverlapCoefficient(
		[]string{"JOHN SMITH"},
		[]string{"JOHN SMITH", "MARY SMITH", "JANE DOE"},
	))

	assert.Equal(t, 0.5, s.OverlapCoefficient(
		[]string{"JOHN SMITH", "BOB JONES"},
		[]string{"JOHN SMITH", "MARY SMITH"},
	))

	assert.Equal(t, 0.0, s.OverlapCoefficient([]string{"JOHN SMITH"}, nil))
	assert.Equal(t, 0.0, s.OverlapCoefficient([]string{"A"}, []string{"B"}))
}

func TestAddressSimilarity(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.AddressSimilarity("123 MAIN ST", "123 MAIN ST"))
	assert.Equal(t, 0.95, s.AddressSimilarity("123 MAIN ST", "123 MAIN ST MIAMI FL 33101"))
	assert.Equal(t, 0.0, s.AddressSimilarity("", "123 MAIN ST"))

	sim := s.AddressSimilarity("123 MAIN ST", "125 MAIN ST")
	assert.Greater(t, sim, 0.5)
	assert.Less(t, sim, 1.0)
}
