package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Purger is the slice of the queue manager the purge worker needs.
type Purger interface {
	PurgeOlderThan(maxAge time.Duration) int
}

// PurgeWorker periodically drops aged-out history and stale terminal
// records from the queue manager.
type PurgeWorker struct {
	interval time.Duration
	maxAge   time.Duration
	purger   Purger
	log      *zerolog.Logger
}

func NewPurgeWorker(interval, maxAge time.Duration, purger Purger, logger *zerolog.Logger) *PurgeWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	plog := logger.With().Str("component", "PurgeWorker").Logger()
	return &PurgeWorker{interval: interval, maxAge: maxAge, purger: purger, log: &plog}
}

func (w *PurgeWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting purge worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping purge worker")
			return ctx.Err()
		case <-ticker.C:
			if n := w.purger.PurgeOlderThan(w.maxAge); n > 0 {
				w.log.Info().Int("count", n).Msg("purged old job records")
			}
		}
	}
}
