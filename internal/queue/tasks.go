package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"knowledge-extraction-platform/internal/locks"
	"knowledge-extraction-platform/internal/logger"
	"knowledge-extraction-platform/internal/store"
	"knowledge-extraction-platform/models"
	"knowledge-extraction-platform/services"
)

const (
	TaskExtractSource = "extraction:run"
)

type ExtractSourcePayload struct {
	SourceID string `json:"source_id"`
}

// NewExtractSourceTask enqueues a full extraction run for one source. The
// caller must already hold the per-source run lock; the worker releases it.
func NewExtractSourceTask(sourceID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ExtractSourcePayload{SourceID: sourceID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskExtractSource,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("default"),
	), nil
}

// TaskProcessor runs queued extraction jobs.
type TaskProcessor struct {
	store    *store.MongoStore
	pipeline *services.Pipeline
	locks    *locks.RunLock
}

func NewTaskProcessor(st *store.MongoStore, pipeline *services.Pipeline, runLock *locks.RunLock) *TaskProcessor {
	return &TaskProcessor{
		store:    st,
		pipeline: pipeline,
		locks:    runLock,
	}
}

// HandleExtractSource executes one extraction run end to end: pipeline,
// source status transition, run summary. The run lock is released whatever
// the outcome so a failed run never wedges its source.
func (p *TaskProcessor) HandleExtractSource(ctx context.Context, t *asynq.Task) error {
	var payload ExtractSourcePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	defer func() {
		if err := p.locks.Release(context.Background(), payload.SourceID); err != nil {
			logger.Error("failed to release run lock", "source_id", payload.SourceID, "error", err)
		}
	}()

	logger.Info("extraction task started", "source_id", payload.SourceID)

	if err := p.store.UpdateSourceStatus(ctx, payload.SourceID, models.SourceStatusExtracting); err != nil {
		return err
	}

	summary, err := p.pipeline.Run(ctx, payload.SourceID)
	if err != nil {
		if statusErr := p.store.UpdateSourceStatus(ctx, payload.SourceID, models.SourceStatusFailed); statusErr != nil {
			logger.Error("failed to mark source failed", "source_id", payload.SourceID, "error", statusErr)
		}
		if err == services.ErrSourceNotFound {
			return fmt.Errorf("source %s not found: %w", payload.SourceID, asynq.SkipRetry)
		}
		return err
	}

	if err := p.store.InsertRunSummary(ctx, summary); err != nil {
		logger.Error("failed to persist run summary", "source_id", payload.SourceID, "error", err)
	}

	return p.store.UpdateSourceStatus(ctx, payload.SourceID, models.SourceStatusExtracted)
}
