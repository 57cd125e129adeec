// Package normalizers provides the canonical-form string transforms used
// by feature extraction and match scoring. Every normalizer is total
// (never panics) and idempotent.
package normalizers

import (
	"regexp"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("nname", NormalizeName)
	Register("naddress", NormalizeAddress)
	Register("nphone", NormalizePhone)
	Register("nperson", NormalizePersonName)
	Register("nemail", NormalizeEmail)
	Register("lowercase", Lowercase)
	Register("uppercase", Uppercase)
	Register("trim", Trim)
	Register("digits_only", DigitsOnly)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// leading articles stripped from company names
var leadingArticles = map[string]bool{"THE": true, "A": true, "AN": true}

// NormalizeName canonicalizes a company name: uppercase, strip leading
// articles, strip punctuation, collapse whitespace.
func NormalizeName(s string) string {
	s = strings.ToUpper(s)
	s = stripPunctuation(s)
	words := strings.Fields(s)
	for len(words) > 0 && leadingArticles[words[0]] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

// honorific titles stripped from person names
var honorifics = map[string]bool{"MR": true, "MRS": true, "MS": true, "DR": true, "PROF": true}

// NormalizePersonName uppercases, strips honorific titles and collapses
// whitespace.
func NormalizePersonName(s string) string {
	s = strings.ToUpper(s)
	words := strings.Fields(s)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if honorifics[strings.TrimRight(w, ".")] {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// NormalizePhone strips to digits and prefixes a country code: 10 digits
// get "+1", 11 digits starting with "1" get "+". Anything else is
// returned as bare digits.
func NormalizePhone(s string) string {
	digits := DigitsOnly(s)
	switch {
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	default:
		return digits
	}
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EmailDomain returns the lowercased domain portion of an email address,
// or "" when the input has no domain.
func EmailDomain(s string) string {
	s = NormalizeEmail(s)
	at := strings.LastIndex(s, "@")
	if at < 0 || at == len(s)-1 {
		return ""
	}
	return s[at+1:]
}

var directionAbbrev = map[string]string{
	"NORTH": "N", "SOUTH": "S", "EAST": "E", "WEST": "W",
	"NORTHEAST": "NE", "NORTHWEST": "NW", "SOUTHEAST": "SE", "SOUTHWEST": "SW",
	"N": "N", "S": "S", "E": "E", "W": "W", "NE": "NE", "NW": "NW", "SE": "SE", "SW": "SW",
}

var streetTypeAbbrev = map[string]string{
	"STREET": "ST", "AVENUE": "AVE", "BOULEVARD": "BLVD", "DRIVE": "DR",
	"ROAD": "RD", "LANE": "LN", "COURT": "CT", "CIRCLE": "CIR", "PLACE": "PL",
	"TERRACE": "TER", "TRAIL": "TRL", "PARKWAY": "PKWY", "HIGHWAY": "HWY",
	"PLAZA": "PLZ", "SQUARE": "SQ", "WAY": "WAY", "LOOP": "LOOP", "ALLEY": "ALY",
	"ST": "ST", "AVE": "AVE", "BLVD": "BLVD", "DR": "DR", "RD": "RD", "LN": "LN",
	"CT": "CT", "CIR": "CIR", "PL": "PL", "TER": "TER", "TRL": "TRL",
	"PKWY": "PKWY", "HWY": "HWY", "PLZ": "PLZ", "SQ": "SQ", "ALY": "ALY",
}

var unitAbbrev = map[string]string{
	"APARTMENT": "APT", "APT": "APT", "SUITE": "STE", "STE": "STE",
	"UNIT": "UNIT", "#": "UNIT", "FLOOR": "FL", "FL": "FL",
}

// structuredAddress matches "123 N MAIN STREET [SE] [APT 4B][, CITY][, ST][ 12345]".
var structuredAddress = regexp.MustCompile(
	`^(\d+[A-Z]?)\s+` + // house number
		`(?:(N|S|E|W|NE|NW|SE|SW|NORTH|SOUTH|EAST|WEST|NORTHEAST|NORTHWEST|SOUTHEAST|SOUTHWEST)\s+)?` + // pre-directional
		`(.+?)\s+` + // street name
		`(STREET|AVENUE|BOULEVARD|DRIVE|ROAD|LANE|COURT|CIRCLE|PLACE|TERRACE|TRAIL|PARKWAY|HIGHWAY|PLAZA|SQUARE|WAY|LOOP|ALLEY|ST|AVE|BLVD|DR|RD|LN|CT|CIR|PL|TER|TRL|PKWY|HWY|PLZ|SQ|ALY)` + // street type
		`(?:\s+(N|S|E|W|NE|NW|SE|SW|NORTH|SOUTH|EAST|WEST|NORTHEAST|NORTHWEST|SOUTHEAST|SOUTHWEST))?` + // post-directional
		`(?:\s+(?:(APARTMENT|APT|SUITE|STE|UNIT|FLOOR|FL|#)\s*([A-Z0-9-]+)))?` + // unit
		`(?:\s*,\s*([A-Z .]+?))?` + // city
		`(?:\s*,\s*([A-Z]{2}))?` + // state
		`(?:\s+(\d{5}(?:-\d{4})?))?$`) // zip

// NormalizeAddress canonicalizes a street address. It attempts a
// structured parse and re-emits components in a fixed order with USPS
// style abbreviations; on parse failure it falls back to word-level
// abbreviation substitution plus punctuation stripping. Never fails;
// always returns a best-effort normalized string.
func NormalizeAddress(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	upper := strings.Join(strings.Fields(strings.ToUpper(s)), " ")
	upper = strings.ReplaceAll(upper, ".", "")

	if m := structuredAddress.FindStringSubmatch(upper); m != nil {
		parts := make([]string, 0, 9)
		parts = append(parts, m[1])
		if m[2] != "" {
			parts = append(parts, directionAbbrev[m[2]])
		}
		parts = append(parts, abbreviateWords(m[3]))
		parts = append(parts, streetTypeAbbrev[m[4]])
		if m[5] != "" {
			parts = append(parts, directionAbbrev[m[5]])
		}
		if m[7] != "" {
			unit := unitAbbrev[m[6]]
			if unit == "" {
				unit = "UNIT"
			}
			parts = append(parts, unit, m[7])
		}
		if m[8] != "" {
			parts = append(parts, stripPunctuation(m[8]))
		}
		if m[9] != "" {
			parts = append(parts, m[9])
		}
		if m[10] != "" {
			parts = append(parts, m[10])
		}
		return strings.Join(parts, " ")
	}

	return abbreviateWords(stripPunctuation(upper))
}

// abbreviateWords applies direction and street-type abbreviations word by
// word. Word-level substitution keeps the transform idempotent.
func abbreviateWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if abbr, ok := directionAbbrev[w]; ok {
			words[i] = abbr
		} else if abbr, ok := streetTypeAbbrev[w]; ok {
			words[i] = abbr
		} else if abbr, ok := unitAbbrev[w]; ok {
			words[i] = abbr
		}
	}
	return strings.Join(words, " ")
}

var legalDesignators = []struct {
	pattern *regexp.Regexp
	tag     string
}{
	{regexp.MustCompile(`(?i)\bL\.?L\.?C\.?\b`), "LLC"},
	{regexp.MustCompile(`(?i)\bINC(?:ORPORATED)?\b`), "INC"},
	{regexp.MustCompile(`(?i)\bCORP(?:ORATION)?\b`), "CORP"},
	{regexp.MustCompile(`(?i)\bLTD\b|\bLIMITED\b`), "LTD"},
}

// ExtractLegalDesignator returns the canonical legal designator tag found
// in a company name, or "" when none is present.
func ExtractLegalDesignator(name string) string {
	for _, d := range legalDesignators {
		if d.pattern.MatchString(name) {
			return d.tag
		}
	}
	return ""
}

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Uppercase converts string to uppercase
func Uppercase(s string) string {
	return strings.ToUpper(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// stripPunctuation replaces punctuation and symbols with spaces and
// collapses the result to single-space separation.
func stripPunctuation(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			result.WriteRune(r)
		} else {
			result.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}
