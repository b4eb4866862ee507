package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"knowledge-extraction-platform/models"
)

type fakeBackfillStore struct {
	unsynced []models.ExtractionRecord
	synced   map[string]bool
	listErr  error
}

func (f *fakeBackfillStore) ListUnsynced(_ context.Context, limit int) ([]models.ExtractionRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.unsynced) > limit {
		return f.unsynced[:limit], nil
	}
	return f.unsynced, nil
}

func (f *fakeBackfillStore) MarkVectorSynced(_ context.Context, recordID string, synced bool) error {
	if f.synced == nil {
		f.synced = make(map[string]bool)
	}
	f.synced[recordID] = synced
	return nil
}

func unsyncedRecord(category string) models.ExtractionRecord {
	return models.ExtractionRecord{
		ID:        primitive.NewObjectID(),
		SourceID:  "src",
		Category:  category,
		Content:   map[string]any{"title": "something"},
		ContextID: "ctx",
		UnitIDs:   []string{"u1"},
	}
}

func TestBackfillRunOnceSyncsRecords(t *testing.T) {
	st := &fakeBackfillStore{
		unsynced: []models.ExtractionRecord{
			unsyncedRecord(models.CategoryWarning),
			unsyncedRecord(models.CategoryDecision),
		},
	}
	vectors := newFakeVectorStore()
	b := NewBackfiller(st, vectors, &fakeEmbedder{}, 100)

	synced, err := b.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, synced)
	assert.Len(t, vectors.upserts, 2)
	for _, rec := range st.unsynced {
		assert.True(t, st.synced[rec.ID.Hex()])
	}
}

func TestBackfillRunOnceNothingToDo(t *testing.T) {
	b := NewBackfiller(&fakeBackfillStore{}, newFakeVectorStore(), &fakeEmbedder{}, 100)

	synced, err := b.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, synced)
}

func TestBackfillRunOnceUpsertFailureLeavesFlag(t *testing.T) {
	st := &fakeBackfillStore{
		unsynced: []models.ExtractionRecord{unsyncedRecord(models.CategoryWarning)},
	}
	vectors := newFakeVectorStore()
	vectors.err = errBoom
	b := NewBackfiller(st, vectors, &fakeEmbedder{}, 100)

	synced, err := b.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Zero(t, synced)
	// Flag untouched so the next pass retries.
	assert.Empty(t, st.synced)
}

func TestBackfillRunOnceRespectsBatch(t *testing.T) {
	st := &fakeBackfillStore{
		unsynced: []models.ExtractionRecord{
			unsyncedRecord(models.CategoryWarning),
			unsyncedRecord(models.CategoryWarning),
			unsyncedRecord(models.CategoryWarning),
		},
	}
	b := NewBackfiller(st, newFakeVectorStore(), &fakeEmbedder{}, 2)

	synced, err := b.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
}

func TestBackfillRunOnceListErrorPropagates(t *testing.T) {
	b := NewBackfiller(&fakeBackfillStore{listErr: errBoom}, newFakeVectorStore(), &fakeEmbedder{}, 100)

	_, err := b.RunOnce(context.Background())
	assert.ErrorIs(t, err, errBoom)
}
