// Package fingerprint derives a stable identity for a raw scraped record.
// Scrapers retry and re-publish; the fingerprint lets downstream consumers
// and event keys treat re-deliveries of the same record as one observation.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Generate hashes the canonicalized record. Key order never affects the
// result, so the same record always fingerprints the same.
func Generate(record map[string]any) string {
	hash := sha256.Sum256([]byte(canonicalize(record)))
	return hex.EncodeToString(hash[:])
}

func canonicalize(data any) string {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		result := "{"
		for i, k := range keys {
			if i > 0 {
				result += ","
			}
			keyJSON, _ := json.Marshal(k)
			result += string(keyJSON) + ":" + canonicalize(v[k])
		}
		return result + "}"
	case []any:
		result := "["
		for i, item := range v {
			if i > 0 {
				result += ","
			}
			result += canonicalize(item)
		}
		return result + "]"
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
