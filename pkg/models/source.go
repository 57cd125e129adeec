package models

import "time"

// SourceType identifies the channel a record was scraped from. Official
// channels carry trustworthy names; informal channels abbreviate freely.
type SourceType string

const (
	SourceSunbiz            SourceType = "sunbiz"
	SourcePropertyDeed      SourceType = "property_deed"
	SourcePropertyAppraiser SourceType = "property_appraiser"
	SourceCityPermit        SourceType = "city_permit"
	SourceCountyPermit      SourceType = "county_permit"
	SourceNewsArticle       SourceType = "news_article"
	SourceSocialMedia       SourceType = "social_media"
	SourceManualEntry       SourceType = "manual_entry"
)

// IsInformal reports whether names from this source get lenient matching.
func (s SourceType) IsInformal() bool {
	return s == SourceNewsArticle || s == SourceSocialMedia
}

// SourceContext describes where a raw record came from. Fingerprint is
// the canonical hash of the record payload; re-deliveries of the same
// record carry the same fingerprint.
type SourceContext struct {
	SourceType  SourceType `json:"source_type"`
	URL         string     `json:"url,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
}

// ScrapedRecordMessage is an incoming record on the ingestion topic.
type ScrapedRecordMessage struct {
	Source    SourceContext  `json:"source"`
	Record    map[string]any `json:"record"`
	ScrapedAt time.Time      `json:"scraped_at"`
}
