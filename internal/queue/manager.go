// Package queue owns the job record store: admission, ordering, lifecycle
// transitions and the running-average model used for wait estimation.
package queue

import (
	"sync"
	"time"

	"multitalk-demo/internal/domain/model"
	"multitalk-demo/internal/infra/logging"
	"multitalk-demo/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const (
	// defaultEstimate is used for kinds the running-average table does not
	// track.
	defaultEstimate = 150.0

	// avgSmoothing is the EMA weight of a new observation.
	avgSmoothing = 0.3

	// queuePreview caps how many queued records GetStatus returns.
	queuePreview = 5
)

// StatusView is a consistent snapshot of the queue for display.
type StatusView struct {
	QueueLength int              `json:"queue_length"`
	ActiveJob   *model.JobRecord `json:"active_job"`
	// EstimatedWaitTime is the cumulative outstanding-work figure in
	// seconds, summed across all queued jobs (see Manager.totalWaitLocked).
	EstimatedWaitTime  float64                   `json:"estimated_wait_time"`
	QueueJobs          []model.JobRecord         `json:"queue_jobs"`
	AvgProcessingTimes map[model.JobKind]float64 `json:"avg_processing_times"`
}

// Manager tracks every live job under a single mutex. One job may be
// processing at a time; serializing Start calls is the worker's job, not
// re-enforced here.
type Manager struct {
	mu         sync.Mutex
	jobs       map[string]*model.JobRecord
	queueOrder []string
	activeJob  string

	history      []model.JobRecord
	historyLimit int

	avgProcessing map[model.JobKind]float64

	log *zerolog.Logger
	now func() time.Time
}

func NewManager(historyLimit int, logger *zerolog.Logger) *Manager {
	if historyLimit <= 0 {
		historyLimit = 100
	}
	qlog := logger.With().Str("component", "QueueManager").Logger()
	return &Manager{
		jobs:         make(map[string]*model.JobRecord),
		historyLimit: historyLimit,
		avgProcessing: map[model.JobKind]float64{
			model.JobKindSingle: 120.0, // default 2 minutes
			model.JobKindMulti:  180.0, // default 3 minutes
		},
		log: &qlog,
		now: time.Now,
	}
}

// Admit creates a queued record and appends it to the queue order. It never
// blocks and never fails; callers wanting an admission cap enforce it
// outside (see the web layer).
func (m *Manager) Admit(kind model.JobKind, sessionID string) string {
	defer logging.TraceDuration(m.log, "Manager.Admit")()
	jobID := uuid.NewString()[:8]
	if sessionID == "" {
		sessionID = "session_" + ulid.Make().String()
	}

	m.mu.Lock()
	job := &model.JobRecord{
		ID:                jobID,
		SessionID:         sessionID,
		Kind:              kind,
		Status:            model.JobStatusQueued,
		CreatedAt:         m.now(),
		EstimatedDuration: m.estimateForKindLocked(kind),
	}
	m.jobs[jobID] = job
	m.queueOrder = append(m.queueOrder, jobID)
	qlen := len(m.queueOrder)
	m.mu.Unlock()

	metrics.IncJobAdmitted(string(kind))
	metrics.SetQueueLength(qlen)
	m.log.Info().Str("job_id", jobID).Str("kind", string(kind)).Int("queue_length", qlen).Msg("job admitted")
	return jobID
}

// Start transitions a job to processing and marks it active. Returns false
// for unknown ids.
func (m *Manager) Start(jobID string) bool {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	started := m.now()
	job.Status = model.JobStatusProcessing
	job.StartedAt = &started
	m.activeJob = jobID
	m.removeFromOrderLocked(jobID)
	qlen := len(m.queueOrder)
	m.mu.Unlock()

	metrics.SetQueueLength(qlen)
	m.log.Info().Str("job_id", jobID).Msg("job started")
	return true
}

// UpdateProgress overwrites progress and the current step description.
// Unknown ids are a benign no-op: a late update racing a just-completed job
// is expected.
func (m *Manager) UpdateProgress(jobID string, fraction float64, step string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		job.Progress = fraction
		job.CurrentStep = step
	}
}

// Complete finalizes a job: terminal status, running-average update on
// success, retirement to bounded history, removal from the live store.
// No-op for unknown ids, which also makes a second Complete harmless.
func (m *Manager) Complete(jobID string, success bool, errorMessage string) {
	defer logging.TraceDuration(m.log, "Manager.Complete")()
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return
	}

	completed := m.now()
	if success {
		job.Status = model.JobStatusCompleted
		job.Progress = 1.0
	} else {
		job.Status = model.JobStatusFailed
	}
	job.CompletedAt = &completed
	if errorMessage != "" {
		job.ErrorMessage = errorMessage
	}

	var duration float64
	if success && job.StartedAt != nil {
		duration = completed.Sub(*job.StartedAt).Seconds()
		m.updateAvgLocked(job.Kind, duration)
	}

	m.history = append(m.history, *job)
	if len(m.history) > m.historyLimit {
		m.history = m.history[1:]
	}

	if m.activeJob == jobID {
		m.activeJob = ""
	}
	delete(m.jobs, jobID)
	kind := job.Kind
	m.mu.Unlock()

	status := "completed"
	if !success {
		status = "failed"
	}
	metrics.IncJobProcessed(string(kind), status)
	if success {
		metrics.ObserveJobDuration(string(kind), duration)
	}
	m.log.Info().Str("job_id", jobID).Bool("success", success).Msg("job completed")
}

// GetStatus returns a consistent snapshot: queue length, the active record,
// the cumulative estimated wait, the first few queued records and the
// running-average table. All records are copies.
func (m *Manager) GetStatus() StatusView {
	defer logging.TraceDuration(m.log, "Manager.GetStatus")()
	m.mu.Lock()
	defer m.mu.Unlock()

	view := StatusView{
		QueueLength:        len(m.queueOrder),
		AvgProcessingTimes: make(map[model.JobKind]float64, len(m.avgProcessing)),
	}
	for k, v := range m.avgProcessing {
		view.AvgProcessingTimes[k] = v
	}

	var active *model.JobRecord
	if m.activeJob != "" {
		if job, ok := m.jobs[m.activeJob]; ok {
			cp := *job
			active = &cp
			view.ActiveJob = &cp
		}
	}

	view.EstimatedWaitTime = m.totalWaitLocked(active)

	limit := len(m.queueOrder)
	if limit > queuePreview {
		limit = queuePreview
	}
	view.QueueJobs = make([]model.JobRecord, 0, limit)
	for _, id := range m.queueOrder[:limit] {
		if job, ok := m.jobs[id]; ok {
			view.QueueJobs = append(view.QueueJobs, *job)
		}
	}
	return view
}

// Position returns the 1-indexed queue position. Unknown ids and the active
// job both report not-queued.
func (m *Manager) Position(jobID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range m.queueOrder {
		if id == jobID {
			return i + 1, true
		}
	}
	return 0, false
}

// Get returns a copy of a live job record.
func (m *Manager) Get(jobID string) (model.JobRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		return *job, true
	}
	return model.JobRecord{}, false
}

// NextQueued returns the id at the head of the queue, if any.
func (m *Manager) NextQueued() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queueOrder) == 0 {
		return "", false
	}
	return m.queueOrder[0], true
}

// ActiveJobID returns the id of the job currently processing, if any.
func (m *Manager) ActiveJobID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeJob, m.activeJob != ""
}

// PurgeOlderThan drops history entries completed before the cutoff and any
// stale terminal records still in the live store. Live non-terminal records
// are never purged. Returns the number of records removed.
func (m *Manager) PurgeOlderThan(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	kept := m.history[:0]
	for _, job := range m.history {
		if job.CompletedAt != nil && job.CompletedAt.After(cutoff) {
			kept = append(kept, job)
		} else {
			removed++
		}
	}
	m.history = kept

	for id, job := range m.jobs {
		if job.Status.IsTerminal() && job.CreatedAt.Before(cutoff) {
			delete(m.jobs, id)
			m.removeFromOrderLocked(id)
			removed++
		}
	}
	return removed
}

// History returns copies of retired records, newest last.
func (m *Manager) History() []model.JobRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.JobRecord, len(m.history))
	copy(out, m.history)
	return out
}

func (m *Manager) estimateForKindLocked(kind model.JobKind) float64 {
	if avg, ok := m.avgProcessing[kind]; ok {
		return avg
	}
	return defaultEstimate
}

// updateAvgLocked applies the EMA. Unknown kinds are not tracked.
func (m *Manager) updateAvgLocked(kind model.JobKind, duration float64) {
	if current, ok := m.avgProcessing[kind]; ok {
		m.avgProcessing[kind] = (1-avgSmoothing)*current + avgSmoothing*duration
	}
}

// totalWaitLocked computes the cumulative estimated wait across the queue:
// the head waits for the active job's projected remaining time, every later
// job contributes its own estimated duration, and the figure returned is
// the running total of all of them. This matches a "total outstanding work"
// number, not "time until my turn".
func (m *Manager) totalWaitLocked(active *model.JobRecord) float64 {
	total := 0.0
	for i, id := range m.queueOrder {
		job, ok := m.jobs[id]
		if !ok {
			continue
		}
		if i == 0 && active != nil {
			total += m.remainingLocked(active)
			continue
		}
		if job.EstimatedDuration > 0 {
			total += job.EstimatedDuration
		} else {
			total += defaultEstimate
		}
	}
	return total
}

// remainingLocked projects remaining time for a processing job from its
// elapsed time and progress fraction.
func (m *Manager) remainingLocked(job *model.JobRecord) float64 {
	if job.StartedAt == nil || job.Progress <= 0 {
		if job.EstimatedDuration > 0 {
			return job.EstimatedDuration
		}
		return defaultEstimate
	}
	if job.Progress >= 1.0 {
		return 0
	}
	elapsed := m.now().Sub(*job.StartedAt).Seconds()
	estimatedTotal := elapsed / job.Progress
	if remaining := estimatedTotal - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}

func (m *Manager) removeFromOrderLocked(jobID string) {
	for i, id := range m.queueOrder {
		if id == jobID {
			m.queueOrder = append(m.queueOrder[:i], m.queueOrder[i+1:]...)
			return
		}
	}
}
