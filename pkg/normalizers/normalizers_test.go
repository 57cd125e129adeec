package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"uppercases", "Acme Holdings LLC", "ACME HOLDINGS LLC"},
		{"strips leading article", "The Acme Group", "ACME GROUP"},
		{"strips punctuation", "ACME, HOLDINGS. L.L.C.", "ACME HOLDINGS L L C"},
		{"collapses whitespace", "ACME    HOLDINGS", "ACME HOLDINGS"},
		{"empty input", "", ""},
		{"article only", "The", ""},
		{"stacked articles", "The A Team", "TEAM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"ten digits", "(305) 555-1234", "+13055551234"},
		{"eleven digits with country code", "1-305-555-1234", "+13055551234"},
		{"already normalized", "+13055551234", "+13055551234"},
		{"international length", "443055551234", "443055551234"},
		{"short number", "5551234", "5551234"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePhone(tt.input))
		})
	}
}

func TestNormalizePersonName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"uppercases", "john smith", "JOHN SMITH"},
		{"strips honorific", "Mr. John Smith", "JOHN SMITH"},
		{"strips honorific without period", "DR JANE DOE", "JANE DOE"},
		{"collapses whitespace", "  Mary   Smith ", "MARY SMITH"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePersonName(tt.input))
		})
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"structured with city state zip", "123 Main Street, Miami, FL 33101", "123 MAIN ST MIAMI FL 33101"},
		{"directional prefix", "456 NW 8th Avenue", "456 NW 8TH AVE"},
		{"spelled out directional", "456 Northwest 8th Avenue", "456 NW 8TH AVE"},
		{"unit hash", "123 Main St #4B", "123 MAIN ST UNIT 4B"},
		{"suite", "900 Biscayne Boulevard Suite 210", "900 BISCAYNE BLVD STE 210"},
		{"fallback on unparseable", "PO Box 1234, Miami Florida", "PO BOX 1234 MIAMI FLORIDA"},
		{"fallback still abbreviates", "CORNER OF MAIN STREET AND WEST AVENUE", "CORNER OF MAIN ST AND W AVE"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeAddress(tt.input))
		})
	}
}

// Every normalizer must be idempotent: applying it twice gives the same
// result as applying it once.
func TestNormalizersIdempotent(t *testing.T) {
	inputs := []string{
		"The Acme Group, LLC",
		"Mr. John Q. Smith Jr.",
		"(305) 555-1234",
		"+13055551234",
		"123 Main Street, Miami, FL 33101",
		"456 Northwest 8th Avenue Apt 2",
		"CORNER OF MAIN STREET AND WEST AVENUE",
		"",
		"   ",
	}

	normalizerNames := []string{"nname", "naddress", "nphone", "nperson", "nemail"}

	for _, name := range normalizerNames {
		fn, ok := Get(name)
		assert.True(t, ok, "normalizer %s not registered", name)
		for _, input := range inputs {
			once := fn(input)
			assert.Equal(t, once, fn(once), "%s not idempotent for %q", name, input)
		}
	}
}

func TestExtractLegalDesignator(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"llc", "Acme Holdings LLC", "LLC"},
		{"llc with periods", "Acme Holdings L.L.C.", "LLC"},
		{"inc", "Acme Inc", "INC"},
		{"incorporated", "Acme Incorporated", "INC"},
		{"corp", "Acme Corp.", "CORP"},
		{"corporation", "Acme Corporation", "CORP"},
		{"ltd", "Acme Ltd", "LTD"},
		{"limited", "Acme Limited", "LTD"},
		{"case insensitive", "acme holdings llc", "LLC"},
		{"no designator", "Acme Holdings", ""},
		{"word boundary", "Catering Services", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractLegalDesignator(tt.input))
		})
	}
}

func TestEmailDomain(t *testing.T) {
	assert.Equal(t, "acme.com", EmailDomain("Info@Acme.com"))
	assert.Equal(t, "", EmailDomain("not-an-email"))
	assert.Equal(t, "", EmailDomain("trailing@"))
}

func TestApplyChain(t *testing.T) {
	assert.Equal(t, "ACME HOLDINGS", ApplyChain(" the Acme Holdings ", "trim", "nname"))
	// unknown normalizers pass the value through
	assert.Equal(t, "abc", Apply("abc", "missing"))
}
