package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExtractionLevel is the granularity a category is evaluated at.
type ExtractionLevel string

const (
	LevelUnit    ExtractionLevel = "unit"
	LevelSection ExtractionLevel = "section"
	LevelChapter ExtractionLevel = "chapter"
)

// Extraction categories
const (
	CategoryDecision    = "decision"
	CategoryPattern     = "pattern"
	CategoryWarning     = "warning"
	CategoryMethodology = "methodology"
)

// RecordSchemaVersion is stamped on every new record. Version 1 records
// predate the hierarchy and carry no context_level.
const RecordSchemaVersion = 2

// ExtractionRecord is one structured knowledge item tied back to the text
// units it was extracted from.
type ExtractionRecord struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SourceID      string             `bson:"source_id" json:"source_id"`
	Category      string             `bson:"category" json:"category"`
	Content       map[string]any     `bson:"content" json:"content"`
	Topics        []string           `bson:"topics,omitempty" json:"topics,omitempty"`
	ContextLevel  ExtractionLevel    `bson:"context_level,omitempty" json:"context_level,omitempty"`
	ContextID     string             `bson:"context_id" json:"context_id"`
	UnitIDs       []string           `bson:"unit_ids" json:"unit_ids"`
	SchemaVersion int                `bson:"schema_version" json:"schema_version"`
	Confidence    float64            `bson:"confidence" json:"confidence"`
	VectorSynced  bool               `bson:"vector_synced" json:"vector_synced"`
	ExtractedAt   time.Time          `bson:"extracted_at" json:"extracted_at"`
}

// Level returns the record's context level, defaulting to unit for records
// written before the hierarchy existed.
func (r *ExtractionRecord) Level() ExtractionLevel {
	if r.ContextLevel == "" {
		return LevelUnit
	}
	return r.ContextLevel
}

// StorageOutcome reports per-store success for one persistence attempt.
// It is returned to the caller for aggregation, never persisted.
type StorageOutcome struct {
	RecordID        string `json:"record_id"`
	StructuredSaved bool   `json:"structured_saved"`
	VectorSaved     bool   `json:"vector_saved"`
}

// PipelineSummary aggregates one extraction run over a source.
type PipelineSummary struct {
	SourceID         string                  `bson:"source_id" json:"source_id"`
	CountsByCategory map[string]int          `bson:"counts_by_category" json:"counts_by_category"`
	CountsByLevel    map[ExtractionLevel]int `bson:"counts_by_level" json:"counts_by_level"`
	Saved            int                     `bson:"saved" json:"saved"`
	Failed           int                     `bson:"failed" json:"failed"`
	Duration         time.Duration           `bson:"duration" json:"duration"`
	StartedAt        time.Time               `bson:"started_at" json:"started_at"`
}
