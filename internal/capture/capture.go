// Package capture intercepts the generator's text output, classifies each
// line into a structured progress update or a log line, and republishes
// both to observers and to the queue manager.
package capture

import (
	"io"
	"strings"
	"sync"
	"time"

	"multitalk-demo/internal/domain/model"
	"multitalk-demo/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// ProgressSink receives forwarded progress fractions for the tracked job.
// The queue manager implements it.
type ProgressSink interface {
	UpdateProgress(jobID string, fraction float64, step string)
}

// Snapshot is the read-side view of the tracked job's progress.
type Snapshot struct {
	Active         bool               `json:"active"`
	Progress       model.ProgressInfo `json:"progress,omitempty"`
	RecentLogs     []string           `json:"recent_logs,omitempty"`
	CapturedOutput []string           `json:"captured_output,omitempty"`
}

const (
	snapshotLogLines    = 20
	snapshotOutputLines = 10
)

// Tracker owns the live progress value, the captured-output history and the
// log ring buffer. One mutex guards all three plus the observer lists, so a
// reader never sees a callback fire for data not yet stored.
type Tracker struct {
	mu sync.Mutex

	current   model.ProgressInfo
	captured  []string
	outputCap int

	logLines []string
	logCap   int

	progressCallbacks []func(model.ProgressInfo)
	logCallbacks      []func(string)

	// forward is the per-job relay into the queue manager, installed by
	// BeginTracking and uninstalled by Scope.Close.
	forward   func(model.ProgressInfo)
	activeJob string

	log *zerolog.Logger
	now func() time.Time
}

func NewTracker(logCap, outputCap int, logger *zerolog.Logger) *Tracker {
	if logCap <= 0 {
		logCap = 100
	}
	if outputCap <= 0 {
		outputCap = 200
	}
	tlog := logger.With().Str("component", "ProgressTracker").Logger()
	return &Tracker{
		outputCap: outputCap,
		logCap:    logCap,
		log:       &tlog,
		now:       time.Now,
	}
}

// AddProgressCallback registers an observer invoked synchronously, in
// registration order, for every parsed progress update.
func (t *Tracker) AddProgressCallback(fn func(model.ProgressInfo)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progressCallbacks = append(t.progressCallbacks, fn)
}

// AddLogCallback registers an observer for every captured log line.
func (t *Tracker) AddLogCallback(fn func(string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logCallbacks = append(t.logCallbacks, fn)
}

// BeginTracking clears prior state, marks jobID as the tracked job and
// returns a scope whose writers intercept the task's output. Parsed
// progress is forwarded to sink.UpdateProgress(jobID, …) until the scope is
// closed. Always close the scope; it detaches the interception on success
// and failure alike.
func (t *Tracker) BeginTracking(jobID string, sink ProgressSink) *Scope {
	t.mu.Lock()
	t.activeJob = jobID
	t.current = model.ProgressInfo{}
	t.captured = nil
	t.logLines = nil
	t.forward = func(info model.ProgressInfo) {
		if sink != nil {
			sink.UpdateProgress(jobID, info.Percentage/100.0, info.Description)
		}
	}
	t.mu.Unlock()

	s := &Scope{t: t, jobID: jobID}
	s.stdout = &lineWriter{emit: func(line string) { t.processLine(line, false) }}
	s.stderr = &lineWriter{emit: func(line string) { t.processLine(line, true) }}

	t.log.Info().Str("job_id", jobID).Msg("tracking started")
	return s
}

// GetProgressInfo returns the snapshot for jobID, or an inactive marker if
// that job is not the one being tracked.
func (t *Tracker) GetProgressInfo(jobID string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if jobID == "" || jobID != t.activeJob {
		return Snapshot{Active: false}
	}
	return Snapshot{
		Active:         true,
		Progress:       t.current,
		RecentLogs:     tailCopy(t.logLines, snapshotLogLines),
		CapturedOutput: tailCopy(t.captured, snapshotOutputLines),
	}
}

// RecentLogs returns up to max of the newest log lines.
func (t *Tracker) RecentLogs(max int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return tailCopy(t.logLines, max)
}

// processLine routes one trimmed output line. Stderr lines always land in
// the log buffer, tagged. Stdout lines go through progress classification
// first and fall back to the log buffer when nothing matches.
func (t *Tracker) processLine(line string, stderr bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if stderr {
		t.addLogLine("[STDERR] " + line)
		return
	}
	if looksLikeProgress(line) {
		if info, tier, ok := ParseLine(line); ok {
			metrics.IncProgressUpdate(tier)
			t.updateProgress(info)
			return
		}
	}
	t.addLogLine(line)
}

// updateProgress overwrites the current value, appends a timestamped copy to
// the captured-output history and notifies observers. The mutation and the
// notification happen under the same critical section so observers always
// fire after the data is durably stored.
func (t *Tracker) updateProgress(info model.ProgressInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = info
	t.captured = append(t.captured, t.stamp(info.Description))
	if len(t.captured) > t.outputCap {
		t.captured = t.captured[1:]
	}
	if t.forward != nil {
		t.invokeProgress(t.forward, info)
	}
	for _, fn := range t.progressCallbacks {
		t.invokeProgress(fn, info)
	}
}

func (t *Tracker) addLogLine(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	formatted := t.stamp(line)
	t.logLines = append(t.logLines, formatted)
	if len(t.logLines) > t.logCap {
		t.logLines = t.logLines[1:]
	}
	for _, fn := range t.logCallbacks {
		t.invokeLog(fn, formatted)
	}
}

// invokeProgress isolates observer faults: a panicking callback is logged
// and the remaining observers still run.
func (t *Tracker) invokeProgress(fn func(model.ProgressInfo), info model.ProgressInfo) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncCallbackPanic()
			t.log.Error().Interface("panic", r).Msg("progress callback panicked")
		}
	}()
	fn(info)
}

func (t *Tracker) invokeLog(fn func(string), line string) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncCallbackPanic()
			t.log.Error().Interface("panic", r).Msg("log callback panicked")
		}
	}()
	fn(line)
}

func (t *Tracker) stamp(line string) string {
	return "[" + t.now().Format("15:04:05") + "] " + line
}

func tailCopy(lines []string, max int) []string {
	if max <= 0 || len(lines) == 0 {
		return nil
	}
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

// Scope is a bounded-lifetime interception of one job's output.
type Scope struct {
	t      *Tracker
	jobID  string
	stdout *lineWriter
	stderr *lineWriter

	closeOnce sync.Once
}

// Stdout is the writer to hand to the generator's standard output.
func (s *Scope) Stdout() io.Writer { return s.stdout }

// Stderr is the writer for the generator's error output.
func (s *Scope) Stderr() io.Writer { return s.stderr }

// Close flushes partial lines and detaches the interception. Idempotent;
// safe to defer immediately after BeginTracking.
func (s *Scope) Close() {
	s.closeOnce.Do(func() {
		s.stdout.flush()
		s.stderr.flush()
		s.t.mu.Lock()
		s.t.forward = nil
		s.t.mu.Unlock()
		s.t.log.Info().Str("job_id", s.jobID).Msg("tracking stopped")
	})
}

// lineWriter buffers written bytes and emits complete lines. Both '\n' and
// '\r' terminate a line: tqdm redraws its bar with carriage returns.
type lineWriter struct {
	mu   sync.Mutex
	buf  strings.Builder
	emit func(line string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, b := range p {
		if b == '\n' || b == '\r' {
			line := w.buf.String()
			w.buf.Reset()
			if line != "" {
				w.emit(line)
			}
			continue
		}
		w.buf.WriteByte(b)
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if line := w.buf.String(); line != "" {
		w.buf.Reset()
		w.emit(line)
	}
}
