package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"knowledge-extraction-platform/internal/logger"
	"knowledge-extraction-platform/models"
)

// maxSummaryChars bounds the embedded summary of a record's content.
const maxSummaryChars = 500

// RecordStore is the structured, authoritative store for extraction records.
type RecordStore interface {
	// FindByContext returns the existing record for source+category+context,
	// or nil when none exists.
	FindByContext(ctx context.Context, sourceID, category, contextID string) (*models.ExtractionRecord, error)
	Insert(ctx context.Context, rec *models.ExtractionRecord) (string, error)
	MarkVectorSynced(ctx context.Context, recordID string, synced bool) error
}

// Embedder produces embedding vectors. Document and query embeddings use
// different instruction framing on the underlying model; collapsing the two
// measurably degrades retrieval, so both modes are kept distinct.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore holds embeddings with a filterable payload, keyed by the
// structured-store record ID so repeated runs converge instead of
// accumulating duplicates.
type VectorStore interface {
	Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error
}

// ExtractionStorage persists one record to both stores: the structured store
// authoritatively, the vector store best-effort.
type ExtractionStorage struct {
	records         RecordStore
	vectors         VectorStore
	embedder        Embedder
	onVectorFailure func()
}

// NewExtractionStorage wires the two stores and the embedding capability.
func NewExtractionStorage(records RecordStore, vectors VectorStore, embedder Embedder) *ExtractionStorage {
	return &ExtractionStorage{records: records, vectors: vectors, embedder: embedder}
}

// OnVectorFailure registers a hook fired every time a vector upsert is
// deferred to backfill.
func (s *ExtractionStorage) OnVectorFailure(fn func()) {
	s.onVectorFailure = fn
}

// Save persists a record. Order is strict: validate provenance, summarize,
// embed, dedupe against source+category+context, insert (authoritative),
// then upsert into the vector store. A vector-store failure degrades the
// outcome but never rolls back the structured insert; the record stays
// flagged unsynced for the backfill job.
func (s *ExtractionStorage) Save(ctx context.Context, rec models.ExtractionRecord) (models.StorageOutcome, error) {
	if rec.SourceID == "" {
		return models.StorageOutcome{}, &ValidationError{Field: "source_id", Reason: "is required"}
	}
	if rec.Category == "" {
		return models.StorageOutcome{}, &ValidationError{Field: "category", Reason: "is required"}
	}
	if len(rec.UnitIDs) == 0 {
		return models.StorageOutcome{}, &ValidationError{Field: "unit_ids", Reason: "must not be empty"}
	}

	summary := SummarizeContent(rec.Category, rec.Content)

	vector, err := s.embedder.EmbedDocument(ctx, summary)
	if err != nil {
		return models.StorageOutcome{}, fmt.Errorf("embed summary: %w", err)
	}

	existing, err := s.records.FindByContext(ctx, rec.SourceID, rec.Category, rec.ContextID)
	if err != nil {
		return models.StorageOutcome{}, fmt.Errorf("duplicate check: %w", err)
	}

	var recordID string
	if existing != nil {
		// Re-run of the pipeline: keep the stored record untouched and
		// converge the vector store against the existing identity.
		recordID = existing.ID.Hex()
		rec = *existing
	} else {
		recordID, err = s.records.Insert(ctx, &rec)
		if err != nil {
			return models.StorageOutcome{}, fmt.Errorf("structured insert: %w", err)
		}
	}

	payload := map[string]any{
		"source_id":     rec.SourceID,
		"category":      rec.Category,
		"topics":        rec.Topics,
		"context_level": string(rec.Level()),
		"context_id":    rec.ContextID,
		"unit_ids":      rec.UnitIDs,
		"summary":       summary,
	}

	if err := s.vectors.Upsert(ctx, recordID, vector, payload); err != nil {
		logger.Error("vector upsert failed, structured store remains source of truth",
			"record_id", recordID, "source_id", rec.SourceID, "category", rec.Category,
			"level", rec.Level(), "context_id", rec.ContextID, "error", err)
		if markErr := s.records.MarkVectorSynced(ctx, recordID, false); markErr != nil {
			logger.Error("failed to flag record for backfill", "record_id", recordID, "error", markErr)
		}
		if s.onVectorFailure != nil {
			s.onVectorFailure()
		}
		return models.StorageOutcome{RecordID: recordID, StructuredSaved: true, VectorSaved: false}, nil
	}

	if err := s.records.MarkVectorSynced(ctx, recordID, true); err != nil {
		logger.Warn("vector synced but flag update failed", "record_id", recordID, "error", err)
	}

	return models.StorageOutcome{RecordID: recordID, StructuredSaved: true, VectorSaved: true}, nil
}

// SummarizeContent renders a short embedding text from a record's structured
// content using category-specific field selection.
func SummarizeContent(category string, content map[string]any) string {
	var parts []string
	switch category {
	case models.CategoryDecision:
		parts = pick(content, "question", "recommendation")
	case models.CategoryPattern:
		parts = pick(content, "name", "problem", "solution")
	case models.CategoryWarning:
		parts = pick(content, "title", "risk", "mitigation")
	case models.CategoryMethodology:
		parts = pick(content, "name", "goal", "steps")
	default:
		parts = pick(content, "title", "description")
	}

	if len(parts) == 0 {
		// Unknown shape: fall back to every string field in key order.
		keys := make([]string, 0, len(content))
		for k := range content {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := stringify(content[k]); ok {
				parts = append(parts, s)
			}
		}
	}

	return truncateAtWord(strings.Join(parts, ". "), maxSummaryChars)
}

func pick(content map[string]any, fields ...string) []string {
	var parts []string
	for _, f := range fields {
		if s, ok := stringify(content[f]); ok {
			parts = append(parts, s)
		}
	}
	return parts
}

func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return "", false
		}
		return strings.TrimSpace(t), true
	case []any:
		var items []string
		for _, it := range t {
			if s, ok := stringify(it); ok {
				items = append(items, s)
			}
		}
		if len(items) == 0 {
			return "", false
		}
		return strings.Join(items, "; "), true
	case []string:
		if len(t) == 0 {
			return "", false
		}
		return strings.Join(t, "; "), true
	default:
		return "", false
	}
}

// truncateAtWord cuts text to at most limit characters, always at a word
// boundary, never mid-word.
func truncateAtWord(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if idx := strings.LastIndexAny(cut, " \t\n"); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " \t\n.,;:")
}
