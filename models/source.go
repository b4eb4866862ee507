package models

import "time"

// Source represents an ingested document that text units were produced from
type Source struct {
	ID          string     `bson:"_id" json:"id"`
	Name        string     `bson:"name" json:"name"`
	ContentType string     `bson:"content_type" json:"content_type"` // markdown, pdf
	Status      string     `bson:"status" json:"status"`
	UnitCount   int        `bson:"unit_count" json:"unit_count"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// Source status constants
const (
	SourceStatusIngested   = "ingested"
	SourceStatusExtracting = "extracting"
	SourceStatusExtracted  = "extracted"
	SourceStatusFailed     = "failed"
)
