package worker

import (
	"context"
	"sync"
	"time"

	"multitalk-demo/internal/capture"
	"multitalk-demo/internal/domain/model"
	"multitalk-demo/internal/domain/ports/adapter"
	"multitalk-demo/internal/infra/logging"
	"multitalk-demo/internal/queue"

	"github.com/rs/zerolog"
)

// Runner is the single worker: it drains the queue head one job at a time,
// wrapping each generation run with a scoped progress capture. Because
// Generate blocks inside the loop, at most one job is ever processing, and
// Start calls are serialized by construction.
type Runner struct {
	qm      *queue.Manager
	tracker *capture.Tracker
	gen     adapter.VideoGenerator

	interval time.Duration

	mu       sync.Mutex
	requests map[string]adapter.GenerationRequest

	log *zerolog.Logger
}

func NewRunner(qm *queue.Manager, tracker *capture.Tracker, gen adapter.VideoGenerator, interval time.Duration, logger *zerolog.Logger) *Runner {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	rlog := logger.With().Str("component", "WorkerRunner").Logger()
	return &Runner{
		qm:       qm,
		tracker:  tracker,
		gen:      gen,
		interval: interval,
		requests: make(map[string]adapter.GenerationRequest),
		log:      &rlog,
	}
}

// Submit admits a job and stores its generation parameters as one step.
// Holding the runner lock across the admission means a concurrent worker
// tick that sees the new queue head blocks in take until the parameters are
// stored, so a freshly admitted job can never hit the missing-parameters
// branch.
func (r *Runner) Submit(kind model.JobKind, sessionID string, req adapter.GenerationRequest) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobID := r.qm.Admit(kind, sessionID)
	r.requests[jobID] = req
	return jobID
}

// Register stores the generation parameters for an already admitted job.
// Callers admitting through the queue directly must register before the job
// reaches the queue head; Submit does both under one lock.
func (r *Runner) Register(jobID string, req adapter.GenerationRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[jobID] = req
}

// Run polls for queued jobs until the context is cancelled.
// This should be run in a goroutine.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info().Msg("worker runner started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("worker runner stopping")
			return
		case <-ticker.C:
			r.processNext(ctx)
		}
	}
}

func (r *Runner) processNext(ctx context.Context) {
	jobID, ok := r.qm.NextQueued()
	if !ok {
		return
	}
	req, ok := r.take(jobID)
	if !ok {
		// Admitted without parameters; fail it rather than stall the queue.
		r.qm.Start(jobID)
		r.qm.Complete(jobID, false, "no generation parameters registered")
		return
	}
	if !r.qm.Start(jobID) {
		return
	}

	ctx = logging.WithJobID(ctx, jobID)
	log := logging.With(ctx, r.log)

	start := time.Now()
	scope := r.tracker.BeginTracking(jobID, r.qm)
	defer scope.Close()

	outputPath, err := r.gen.Generate(ctx, req, scope.Stdout(), scope.Stderr())
	latency := time.Since(start)

	if err != nil {
		r.qm.Complete(jobID, false, err.Error())
		log.Error().Err(err).Dur("duration", latency).Msg("generation failed")
		return
	}
	r.qm.Complete(jobID, true, "")
	log.Info().Str("output", outputPath).Dur("duration", latency).Msg("generation finished")
}

func (r *Runner) take(jobID string) (adapter.GenerationRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[jobID]
	if ok {
		delete(r.requests, jobID)
	}
	return req, ok
}
