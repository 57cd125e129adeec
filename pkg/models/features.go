package models

// Features is the fixed-shape identity snapshot extracted from a raw
// source record. Absent fields are empty, never an error.
type Features struct {
	DocumentNumber   string   `json:"document_number,omitempty"`
	TaxID            string   `json:"tax_id,omitempty"`
	OfficialName     string   `json:"official_name,omitempty"`
	LegalDesignator  string   `json:"legal_designator,omitempty"`
	Owner            string   `json:"owner,omitempty"`
	Owners           []string `json:"owners,omitempty"`
	Principals       []string `json:"principals,omitempty"`
	Officers         []string `json:"officers,omitempty"`
	RegisteredAgent  string   `json:"registered_agent,omitempty"`
	PrincipalAddress string   `json:"principal_address,omitempty"`
	MailingAddress   string   `json:"mailing_address,omitempty"`
	Phone            string   `json:"phone,omitempty"`
	Email            string   `json:"email,omitempty"`
	Website          string   `json:"website,omitempty"`
	ParcelID         string   `json:"parcel_id,omitempty"`
	PermitNumber     string   `json:"permit_number,omitempty"`
}

// People collects every person-shaped field into one list (owner, owners,
// principals, officers). Used by the people-overlap signal.
func (f Features) People() []string {
	out := make([]string, 0, 1+len(f.Owners)+len(f.Principals)+len(f.Officers))
	if f.Owner != "" {
		out = append(out, f.Owner)
	}
	out = append(out, f.Owners...)
	out = append(out, f.Principals...)
	out = append(out, f.Officers...)
	return out
}

// BestAddress prefers the principal address, falling back to mailing.
func (f Features) BestAddress() string {
	if f.PrincipalAddress != "" {
		return f.PrincipalAddress
	}
	return f.MailingAddress
}

// HasIdentifyingField reports whether the record carries anything the
// candidate finder can search on.
func (f Features) HasIdentifyingField() bool {
	return f.OfficialName != "" || f.BestAddress() != "" || f.Phone != "" || f.Owner != "" ||
		f.DocumentNumber != "" || f.TaxID != "" || f.ParcelID != ""
}
