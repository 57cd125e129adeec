// Package extractor pulls a fixed-shape identity feature set out of
// arbitrarily-shaped scraped records. Field names vary wildly by source
// ("EntityName" vs "entity_name" vs "applicant"), so each logical field
// is resolved through an ordered alias list; the first non-empty hit
// wins. Extraction never fails on missing fields.
package extractor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/normalizers"
)

// fieldAliases maps each logical feature to the record keys it may appear
// under, in priority order. Keys are compared case- and punctuation-
// insensitively, so "EntityName", "entity_name" and "entity-name" all hit
// the "entity_name" alias.
var fieldAliases = map[string][]string{
	"document_number": {"document_number", "doc_number", "document_num", "filing_number", "registration_number"},
	"tax_id":          {"tax_id", "fei_ein_number", "fein", "ein", "federal_tax_id"},
	"official_name": {
		"official_name", "entity_name", "company_name", "corporate_name", "business_name",
		"applicant_name", "applicant", "contractor_name", "contractor", "buyer_name", "buyer",
		"grantee", "name",
	},
	"legal_designator":  {"legal_designator", "entity_designator"},
	"owner":             {"owner", "owner_name", "property_owner", "current_owner"},
	"owners":            {"owners", "owner_names"},
	"principals":        {"principals", "authorized_persons", "members", "managers"},
	"officers":          {"officers", "officer_list", "directors"},
	"registered_agent":  {"registered_agent", "registered_agent_name", "agent_name", "agent"},
	"principal_address": {"principal_address", "street_address", "site_address", "property_address", "location_address", "address"},
	"mailing_address":   {"mailing_address", "mail_address", "po_address"},
	"phone":             {"phone", "phone_number", "telephone", "contact_phone"},
	"email":             {"email", "email_address", "contact_email"},
	"website":           {"website", "web_address", "url"},
	"parcel_id":         {"parcel_id", "parcel_number", "folio_number", "folio", "pin"},
	"permit_number":     {"permit_number", "permit_no", "permit_num"},
}

// Extractor resolves logical features against raw scraped records.
type Extractor struct{}

// New creates a new Extractor
func New() *Extractor {
	return &Extractor{}
}

// ExtractAllFeatures produces the identity feature snapshot for a raw
// record. Absent fields come back empty; the legal designator is derived
// from the official name when no explicit field carries it.
func (e *Extractor) ExtractAllFeatures(record map[string]any) models.Features {
	keys := foldKeys(record)

	features := models.Features{
		DocumentNumber:   e.extractString(keys, "document_number"),
		TaxID:            e.extractString(keys, "tax_id"),
		OfficialName:     e.extractString(keys, "official_name"),
		LegalDesignator:  e.extractString(keys, "legal_designator"),
		Owner:            e.extractString(keys, "owner"),
		Owners:           e.extractStringList(keys, "owners"),
		Principals:       e.extractStringList(keys, "principals"),
		Officers:         e.extractStringList(keys, "officers"),
		RegisteredAgent:  e.extractString(keys, "registered_agent"),
		PrincipalAddress: e.extractString(keys, "principal_address"),
		MailingAddress:   e.extractString(keys, "mailing_address"),
		Phone:            e.extractString(keys, "phone"),
		Email:            e.extractString(keys, "email"),
		Website:          e.extractString(keys, "website"),
		ParcelID:         e.extractString(keys, "parcel_id"),
		PermitNumber:     e.extractString(keys, "permit_number"),
	}

	if features.LegalDesignator == "" && features.OfficialName != "" {
		features.LegalDesignator = normalizers.ExtractLegalDesignator(features.OfficialName)
	}

	return features
}

// extractString returns the first non-empty alias hit for a field.
func (e *Extractor) extractString(keys map[string]any, field string) string {
	for _, alias := range fieldAliases[field] {
		if v, ok := keys[foldKey(alias)]; ok {
			if s := strings.TrimSpace(toString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// extractStringList returns the first non-empty list-valued alias hit.
func (e *Extractor) extractStringList(keys map[string]any, field string) []string {
	for _, alias := range fieldAliases[field] {
		if v, ok := keys[foldKey(alias)]; ok {
			if list := toStringList(v); len(list) > 0 {
				return list
			}
		}
	}
	return nil
}

// foldKeys indexes a record by folded key. First occurrence wins when two
// raw keys fold to the same value.
func foldKeys(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		fk := foldKey(k)
		if _, exists := out[fk]; !exists {
			out[fk] = v
		}
	}
	return out
}

// foldKey lowercases and strips everything but letters and digits, so
// "EntityName", "entity_name" and "ENTITY-NAME" compare equal.
func foldKey(k string) string {
	var b strings.Builder
	for _, r := range k {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// toString converts any scalar value to a string
func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; avoid exponent notation for ids
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case bool:
		return fmt.Sprintf("%t", val)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// toStringList coerces list values into a string slice. Officer lists
// often arrive as objects; those contribute their name field.
func toStringList(v any) []string {
	switch list := v.(type) {
	case []string:
		out := make([]string, 0, len(list))
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			switch it := item.(type) {
			case string:
				if s := strings.TrimSpace(it); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				for _, nameKey := range []string{"name", "full_name", "officer_name"} {
					if s := strings.TrimSpace(toString(it[nameKey])); s != "" {
						out = append(out, s)
						break
					}
				}
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(list); s != "" {
			return []string{s}
		}
		return nil
	default:
		return nil
	}
}

// FromJSON parses JSON data and returns it as a map
func FromJSON(data json.RawMessage) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
