package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/briar/pkg/fingerprint"
	"github.com/Ramsey-B/briar/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	ScrapedRecord *models.ScrapedRecordMessage
}

// ParseScrapedRecord parses the message value as a scraped record envelope.
// A record with no source type or no payload is rejected so malformed
// scraper output doesn't become a provisional entity with empty features.
func (m *IncomingMessage) ParseScrapedRecord() error {
	var msg models.ScrapedRecordMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return err
	}
	if msg.Source.SourceType == "" {
		return fmt.Errorf("scraped record missing source type")
	}
	if len(msg.Record) == 0 {
		return fmt.Errorf("scraped record missing record payload")
	}
	if msg.Source.Fingerprint == "" {
		msg.Source.Fingerprint = fingerprint.Generate(msg.Record)
	}
	m.ScrapedRecord = &msg
	return nil
}

// GetSourceType returns the source type, falling back to the Kafka header
// set by scrapers that publish raw records.
func (m *IncomingMessage) GetSourceType() models.SourceType {
	if m.ScrapedRecord != nil {
		return m.ScrapedRecord.Source.SourceType
	}
	return models.SourceType(m.Headers["source_type"])
}

// GetSourceURL returns the URL the record was scraped from, if any
func (m *IncomingMessage) GetSourceURL() string {
	if m.ScrapedRecord != nil {
		return m.ScrapedRecord.Source.URL
	}
	return m.Headers["source_url"]
}
