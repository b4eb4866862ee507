package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-extraction-platform/models"
)

func testPipeline(t *testing.T, units *fakeUnitStore, records *fakeRecordStore, vectors *fakeVectorStore, extractors ...Extractor) *Pipeline {
	t.Helper()
	orchestrator, err := NewOrchestrator(DefaultLevelConfig(), NewContextCombiner(&fakeCounter{}), extractors)
	require.NoError(t, err)
	storage := NewExtractionStorage(records, vectors, &fakeEmbedder{})
	return NewPipeline(units, orchestrator, storage)
}

// fakeRunMetrics records extraction and run measurements in memory.
type fakeRunMetrics struct {
	extractions map[string]int64
	runs        []string
}

func newFakeRunMetrics() *fakeRunMetrics {
	return &fakeRunMetrics{extractions: make(map[string]int64)}
}

func (f *fakeRunMetrics) RecordExtraction(category, level string, count int64) {
	f.extractions[category+"@"+level] += count
}

func (f *fakeRunMetrics) RecordExtractionRun(_ float64, status string) {
	f.runs = append(f.runs, status)
}

func TestPipelineRunUnknownSource(t *testing.T) {
	p := testPipeline(t, &fakeUnitStore{source: nil}, newFakeRecordStore(), newFakeVectorStore())

	_, err := p.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestPipelineRunEmptySource(t *testing.T) {
	units := &fakeUnitStore{source: &models.Source{ID: "src"}}
	p := testPipeline(t, units, newFakeRecordStore(), newFakeVectorStore())

	summary, err := p.Run(context.Background(), "src")
	require.NoError(t, err)

	assert.Zero(t, summary.Saved)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, summary.CountsByCategory)
}

func TestPipelineRunAggregatesCounts(t *testing.T) {
	units := &fakeUnitStore{
		source: &models.Source{ID: "src"},
		units: []models.TextUnit{
			unit("u1", "src", "a", 0, "C1"),
			unit("u2", "src", "b", 1, "C1", "S1"),
		},
	}
	decision := &fakeExtractor{
		category: models.CategoryDecision,
		results:  []ExtractionResult{{Content: map[string]any{"question": "q"}}},
	}
	pattern := &fakeExtractor{
		category: models.CategoryPattern,
		results:  []ExtractionResult{{Content: map[string]any{"name": "p"}}},
	}

	records := newFakeRecordStore()
	p := testPipeline(t, units, records, newFakeVectorStore(), decision, pattern)

	summary, err := p.Run(context.Background(), "src")
	require.NoError(t, err)

	// decision: one per unit; pattern: one for the section.
	assert.Equal(t, 3, summary.Saved)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 2, summary.CountsByCategory[models.CategoryDecision])
	assert.Equal(t, 1, summary.CountsByCategory[models.CategoryPattern])
	assert.Equal(t, 2, summary.CountsByLevel[models.LevelUnit])
	assert.Equal(t, 1, summary.CountsByLevel[models.LevelSection])
	assert.Equal(t, 3, records.inserts)
	assert.False(t, summary.StartedAt.IsZero())
}

func TestPipelineRunRecordsMetrics(t *testing.T) {
	units := &fakeUnitStore{
		source: &models.Source{ID: "src"},
		units: []models.TextUnit{
			unit("u1", "src", "a", 0, "C1"),
			unit("u2", "src", "b", 1, "C1", "S1"),
		},
	}
	decision := &fakeExtractor{
		category: models.CategoryDecision,
		results:  []ExtractionResult{{Content: map[string]any{"question": "q"}}},
	}
	pattern := &fakeExtractor{
		category: models.CategoryPattern,
		results:  []ExtractionResult{{Content: map[string]any{"name": "p"}}},
	}

	metrics := newFakeRunMetrics()
	p := testPipeline(t, units, newFakeRecordStore(), newFakeVectorStore(), decision, pattern).
		WithMetrics(metrics)

	_, err := p.Run(context.Background(), "src")
	require.NoError(t, err)

	assert.Equal(t, int64(2), metrics.extractions["decision@unit"])
	assert.Equal(t, int64(1), metrics.extractions["pattern@section"])
	assert.Equal(t, []string{"success"}, metrics.runs)
}

func TestPipelineRunRecordsFailedRun(t *testing.T) {
	metrics := newFakeRunMetrics()
	p := testPipeline(t, &fakeUnitStore{source: nil}, newFakeRecordStore(), newFakeVectorStore()).
		WithMetrics(metrics)

	_, err := p.Run(context.Background(), "missing")
	require.Error(t, err)

	assert.Empty(t, metrics.extractions)
	assert.Equal(t, []string{"failed"}, metrics.runs)
}

func TestPipelineRunStorageFailureDoesNotAbort(t *testing.T) {
	units := &fakeUnitStore{
		source: &models.Source{ID: "src"},
		units:  []models.TextUnit{unit("u1", "src", "a", 0, "C1")},
	}
	decision := &fakeExtractor{
		category: models.CategoryDecision,
		results:  []ExtractionResult{{Content: map[string]any{"question": "q"}}},
	}
	warning := &fakeExtractor{
		category: models.CategoryWarning,
		results:  []ExtractionResult{{Content: map[string]any{"title": "w"}}},
	}

	records := newFakeRecordStore()
	records.insertErr = errBoom
	p := testPipeline(t, units, records, newFakeVectorStore(), decision, warning)

	summary, err := p.Run(context.Background(), "src")
	require.NoError(t, err)

	// Every save failed, but the run itself completes and counts them.
	assert.Zero(t, summary.Saved)
	assert.Equal(t, 2, summary.Failed)
}

func TestPipelineRunVectorFailureStillCountsSaved(t *testing.T) {
	units := &fakeUnitStore{
		source: &models.Source{ID: "src"},
		units:  []models.TextUnit{unit("u1", "src", "a", 0, "C1")},
	}
	decision := &fakeExtractor{
		category: models.CategoryDecision,
		results:  []ExtractionResult{{Content: map[string]any{"question": "q"}}},
	}

	vectors := newFakeVectorStore()
	vectors.err = errBoom
	p := testPipeline(t, units, newFakeRecordStore(), vectors, decision)

	summary, err := p.Run(context.Background(), "src")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Saved)
	assert.Zero(t, summary.Failed)
}
