package services

import (
	"context"
	"time"

	"knowledge-extraction-platform/internal/logger"
	"knowledge-extraction-platform/models"
)

// UnitStore retrieves sources and their text units.
type UnitStore interface {
	// GetSource returns nil when the source does not exist.
	GetSource(ctx context.Context, sourceID string) (*models.Source, error)
	GetUnits(ctx context.Context, sourceID string) ([]models.TextUnit, error)
}

// RunMetrics receives pipeline measurements. Implementations must be safe
// for concurrent use.
type RunMetrics interface {
	RecordExtraction(category, level string, count int64)
	RecordExtractionRun(duration float64, status string)
}

// Pipeline is the top-level coordinator for one source: load units, run the
// orchestrator, persist every record, aggregate the outcome.
type Pipeline struct {
	units        UnitStore
	orchestrator *Orchestrator
	storage      *ExtractionStorage
	metrics      RunMetrics
}

// NewPipeline assembles the extraction pipeline.
func NewPipeline(units UnitStore, orchestrator *Orchestrator, storage *ExtractionStorage) *Pipeline {
	return &Pipeline{units: units, orchestrator: orchestrator, storage: storage}
}

// WithMetrics attaches a metrics sink. Without one the pipeline records
// nothing.
func (p *Pipeline) WithMetrics(m RunMetrics) *Pipeline {
	p.metrics = m
	return p
}

// Run extracts one source end to end. An unknown source fails the run with
// ErrSourceNotFound; a source with no units returns a zero-count summary
// without error. Individual storage failures never abort the loop, they only
// surface in the summary's failed count.
func (p *Pipeline) Run(ctx context.Context, sourceID string) (*models.PipelineSummary, error) {
	started := time.Now()

	src, err := p.units.GetSource(ctx, sourceID)
	if err != nil {
		p.recordRun(started, "failed")
		return nil, err
	}
	if src == nil {
		p.recordRun(started, "failed")
		return nil, ErrSourceNotFound
	}

	summary := &models.PipelineSummary{
		SourceID:         sourceID,
		CountsByCategory: make(map[string]int),
		CountsByLevel:    make(map[models.ExtractionLevel]int),
		StartedAt:        started,
	}

	units, err := p.units.GetUnits(ctx, sourceID)
	if err != nil {
		p.recordRun(started, "failed")
		return nil, err
	}
	if len(units) == 0 {
		summary.Duration = time.Since(started)
		p.recordRun(started, "success")
		return summary, nil
	}

	records := p.orchestrator.ExtractDocument(ctx, units, sourceID)

	for _, rec := range records {
		outcome, err := p.storage.Save(ctx, rec)
		if err != nil {
			summary.Failed++
			logger.Error("record save failed",
				"source_id", sourceID, "category", rec.Category,
				"level", rec.Level(), "context_id", rec.ContextID, "error", err)
			continue
		}

		summary.Saved++
		summary.CountsByCategory[rec.Category]++
		summary.CountsByLevel[rec.Level()]++
		if p.metrics != nil {
			p.metrics.RecordExtraction(rec.Category, string(rec.Level()), 1)
		}
		if !outcome.VectorSaved {
			logger.Warn("record saved without vector entry, backfill will retry",
				"record_id", outcome.RecordID, "source_id", sourceID)
		}
	}

	summary.Duration = time.Since(started)
	p.recordRun(started, "success")
	logger.Info("extraction run finished",
		"source_id", sourceID, "records", len(records),
		"saved", summary.Saved, "failed", summary.Failed,
		"duration", summary.Duration.String())

	return summary, nil
}

func (p *Pipeline) recordRun(started time.Time, status string) {
	if p.metrics != nil {
		p.metrics.RecordExtractionRun(time.Since(started).Seconds(), status)
	}
}
