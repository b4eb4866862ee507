package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"knowledge-extraction-platform/internal/logger"
)

// BackfillScheduler runs the vector backfill on a cron cadence so records
// that failed their vector upsert at save time eventually converge.
type BackfillScheduler struct {
	scheduler  *gocron.Scheduler
	backfiller *Backfiller
}

func NewBackfillScheduler(backfiller *Backfiller, cronExpr string) (*BackfillScheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	_, err := s.Cron(cronExpr).Tag("vector-backfill").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if _, err := backfiller.RunOnce(ctx); err != nil {
			logger.Error("vector backfill pass failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}

	return &BackfillScheduler{scheduler: s, backfiller: backfiller}, nil
}

// Start begins running scheduled passes in the background.
func (b *BackfillScheduler) Start() {
	b.scheduler.StartAsync()
}

// Stop halts the scheduler.
func (b *BackfillScheduler) Stop() {
	b.scheduler.Stop()
}
