// Package status composes read-only display views over the queue manager
// and the progress tracker. It never mutates either.
package status

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"multitalk-demo/internal/capture"
	"multitalk-demo/internal/queue"

	"github.com/rs/zerolog"
)

// QueueStatusProvider is the slice of the queue manager the aggregator
// needs.
type QueueStatusProvider interface {
	GetStatus() queue.StatusView
}

// ProgressProvider is the slice of the progress tracker the aggregator
// needs.
type ProgressProvider interface {
	GetProgressInfo(jobID string) capture.Snapshot
}

// Views are the three independent rendered panels. A failure in one
// collaborator yields a visibly-marked error view for that panel only.
type Views struct {
	QueueSummary   string `json:"queue_summary"`
	ProgressDetail string `json:"progress_detail"`
	LogTail        string `json:"log_tail"`
}

// Aggregator polls both providers on a fixed interval and caches the latest
// snapshot so a slow reader never blocks admissions or progress updates.
type Aggregator struct {
	queue    QueueStatusProvider
	progress ProgressProvider
	interval time.Duration

	mu     sync.Mutex
	latest Views
	// lastActive remembers the active job id from the most recent healthy
	// queue read, so the tracker panels survive a queue provider failure.
	lastActive string

	log *zerolog.Logger
}

func NewAggregator(q QueueStatusProvider, p ProgressProvider, interval time.Duration, logger *zerolog.Logger) *Aggregator {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	alog := logger.With().Str("component", "StatusAggregator").Logger()
	a := &Aggregator{
		queue:    q,
		progress: p,
		interval: interval,
		log:      &alog,
	}
	a.latest = a.Snapshot()
	return a
}

// Run refreshes the cached views until the context is cancelled. Best
// effort: a failed refresh keeps the previous snapshot and reschedules.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("status aggregator stopping")
			return
		case <-ticker.C:
			views := a.Snapshot()
			a.mu.Lock()
			a.latest = views
			a.mu.Unlock()
		}
	}
}

// Latest returns the most recently cached views.
func (a *Aggregator) Latest() Views {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

// Snapshot renders all three views on demand. Each panel is rendered in
// isolation so one failure cannot blank out the others: a queue failure
// marks only the queue summary, and the tracker panels are served against
// the last known active job.
func (a *Aggregator) Snapshot() Views {
	status, statusErr := a.safeQueueStatus()

	var views Views
	var activeID string
	if statusErr != nil {
		views.QueueSummary = errorView("queue status", statusErr)
		a.mu.Lock()
		activeID = a.lastActive
		a.mu.Unlock()
	} else {
		views.QueueSummary = renderQueueSummary(status)
		if status.ActiveJob != nil {
			activeID = status.ActiveJob.ID
		}
		a.mu.Lock()
		a.lastActive = activeID
		a.mu.Unlock()
	}

	snap, snapErr := a.safeProgressInfo(activeID)
	if snapErr != nil {
		views.ProgressDetail = errorView("progress monitor", snapErr)
		views.LogTail = errorView("logs", snapErr)
		return views
	}
	views.ProgressDetail = renderProgressDetail(snap)
	views.LogTail = renderLogTail(snap)
	return views
}

func (a *Aggregator) safeQueueStatus() (view queue.StatusView, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue status provider: %v", r)
			a.log.Error().Interface("panic", r).Msg("queue status read failed")
		}
	}()
	return a.queue.GetStatus(), nil
}

func (a *Aggregator) safeProgressInfo(jobID string) (snap capture.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("progress provider: %v", r)
			a.log.Error().Interface("panic", r).Msg("progress read failed")
		}
	}()
	return a.progress.GetProgressInfo(jobID), nil
}

func errorView(name string, err error) string {
	return fmt.Sprintf("!! %s unavailable: %v", name, err)
}

func renderQueueSummary(status queue.StatusView) string {
	var b strings.Builder
	b.WriteString("Queue Status\n")

	if status.QueueLength == 0 && status.ActiveJob == nil {
		b.WriteString("No jobs in queue - ready for new requests\n")
		return b.String()
	}

	if active := status.ActiveJob; active != nil {
		fmt.Fprintf(&b, "Processing %s (%s) - %d%% - %s\n",
			active.ID, active.Kind, int(active.Progress*100), active.CurrentStep)
	}
	if status.QueueLength > 0 {
		fmt.Fprintf(&b, "Jobs in queue: %d\n", status.QueueLength)
		fmt.Fprintf(&b, "Estimated wait: %s\n", FormatDuration(status.EstimatedWaitTime))
		for i, job := range status.QueueJobs {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "  %d. %s (%s) added %s\n",
				i+1, job.ID, job.Kind, job.CreatedAt.Format("15:04:05"))
		}
	}
	return b.String()
}

func renderProgressDetail(snap capture.Snapshot) string {
	if !snap.Active {
		return "Progress Monitor\nNo active job\n"
	}

	p := snap.Progress
	var b strings.Builder
	b.WriteString("Progress Monitor\n")
	fmt.Fprintf(&b, "Overall: %.1f%%\n", p.Percentage)
	if p.CurrentStep > 0 && p.TotalSteps > 0 {
		fmt.Fprintf(&b, "Step: %d/%d\n", p.CurrentStep, p.TotalSteps)
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "%s\n", p.Description)
	}
	if p.ETA != "" {
		fmt.Fprintf(&b, "ETA: %s  Elapsed: %s\n", p.ETA, FormatDuration(p.ElapsedTime))
	}
	return b.String()
}

func renderLogTail(snap capture.Snapshot) string {
	if !snap.Active || len(snap.RecentLogs) == 0 {
		return "No recent activity"
	}
	return strings.Join(snap.RecentLogs, "\n")
}

// FormatDuration renders seconds as "45s", "2m 30s" or "1h 5m".
func FormatDuration(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", int(seconds))
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", int(seconds)/60, int(seconds)%60)
	}
	return fmt.Sprintf("%dh %dm", int(seconds)/3600, (int(seconds)%3600)/60)
}
