package services

import (
	"context"

	"knowledge-extraction-platform/internal/logger"
	"knowledge-extraction-platform/models"
)

// BackfillStore lists records whose vector entry is missing and flips the
// sync flag once it has been written.
type BackfillStore interface {
	ListUnsynced(ctx context.Context, limit int) ([]models.ExtractionRecord, error)
	MarkVectorSynced(ctx context.Context, recordID string, synced bool) error
}

// Backfiller converges the vector store with the structured store. Records
// whose vector upsert failed at save time stay flagged; each pass re-embeds
// and retries a bounded batch of them.
type Backfiller struct {
	store    BackfillStore
	vectors  VectorStore
	embedder Embedder
	batch    int
}

func NewBackfiller(store BackfillStore, vectors VectorStore, embedder Embedder, batch int) *Backfiller {
	if batch <= 0 {
		batch = 100
	}
	return &Backfiller{store: store, vectors: vectors, embedder: embedder, batch: batch}
}

// RunOnce processes one batch and reports how many records were synced.
// Per-record failures are logged and left flagged for the next pass.
func (b *Backfiller) RunOnce(ctx context.Context) (int, error) {
	records, err := b.store.ListUnsynced(ctx, b.batch)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	synced := 0
	for _, rec := range records {
		recordID := rec.ID.Hex()
		summary := SummarizeContent(rec.Category, rec.Content)

		vector, err := b.embedder.EmbedDocument(ctx, summary)
		if err != nil {
			logger.Error("backfill embed failed", "record_id", recordID, "error", err)
			continue
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
		if err := b.vectors.Upsert(ctx, recordID, vector, payload); err != nil {
			logger.Error("backfill upsert failed", "record_id", recordID, "error", err)
			continue
		}

		if err := b.store.MarkVectorSynced(ctx, recordID, true); err != nil {
			logger.Error("backfill flag update failed", "record_id", recordID, "error", err)
			continue
		}
		synced++
	}

	logger.Info("vector backfill pass finished", "candidates", len(records), "synced", synced)
	return synced, nil
}
