package capture

import (
	"strings"
	"sync"
	"testing"

	"multitalk-demo/internal/domain/model"

	"github.com/rs/zerolog"
)

// recordingSink collects forwarded progress updates.
type recordingSink struct {
	mu      sync.Mutex
	updates []struct {
		jobID    string
		fraction float64
		step     string
	}
}

func (s *recordingSink) UpdateProgress(jobID string, fraction float64, step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, struct {
		jobID    string
		fraction float64
		step     string
	}{jobID, fraction, step})
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	logger := zerolog.Nop()
	return NewTracker(100, 200, &logger)
}

func TestTracker_ForwardsParsedProgressToSink(t *testing.T) {
	t.Parallel()
	tracker := newTestTracker(t)
	sink := &recordingSink{}

	scope := tracker.BeginTracking("job1", sink)
	defer scope.Close()

	// tqdm redraws with a carriage return, not a newline.
	_, _ = scope.Stdout().Write([]byte("45%|███       | 12/30 [00:12<00:18, 2.50it/s]\r"))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.updates) != 1 {
		t.Fatalf("expected 1 forwarded update, got %d", len(sink.updates))
	}
	u := sink.updates[0]
	if u.jobID != "job1" {
		t.Fatalf("expected job1, got %q", u.jobID)
	}
	if u.fraction != 0.45 {
		t.Fatalf("expected fraction 0.45, got %v", u.fraction)
	}

	snap := tracker.GetProgressInfo("job1")
	if !snap.Active {
		t.Fatalf("expected active snapshot for the tracked job")
	}
	if snap.Progress.Percentage != 45.0 {
		t.Fatalf("expected 45%%, got %v", snap.Progress.Percentage)
	}
}

func TestTracker_StderrLinesAreTaggedAndNeverParsed(t *testing.T) {
	t.Parallel()
	tracker := newTestTracker(t)
	sink := &recordingSink{}

	scope := tracker.BeginTracking("job1", sink)
	defer scope.Close()

	// Even a progress-shaped line on stderr is a log line.
	_, _ = scope.Stderr().Write([]byte("50%|█████     | 15/30 [00:15<00:15, 1.00it/s]\n"))
	_, _ = scope.Stderr().Write([]byte("CUDA warning: fragmentation\n"))

	if sink.count() != 0 {
		t.Fatalf("stderr must never forward progress, got %d updates", sink.count())
	}
	logs := tracker.RecentLogs(10)
	if len(logs) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(logs))
	}
	for _, line := range logs {
		if !strings.Contains(line, "[STDERR] ") {
			t.Fatalf("expected stderr tag in %q", line)
		}
	}
}

func TestTracker_IndicatorLineThatFailsParsingBecomesLog(t *testing.T) {
	t.Parallel()
	tracker := newTestTracker(t)

	scope := tracker.BeginTracking("job1", &recordingSink{})
	defer scope.Close()

	// Contains "step" so it enters progress classification, but neither
	// pattern matches.
	_, _ = scope.Stdout().Write([]byte("preparing step pipeline\n"))

	logs := tracker.RecentLogs(10)
	if len(logs) != 1 || !strings.Contains(logs[0], "preparing step pipeline") {
		t.Fatalf("expected the line demoted to logs, got %v", logs)
	}
}

func TestTracker_LogRingEvictsOldestFirst(t *testing.T) {
	t.Parallel()
	logger := zerolog.Nop()
	tracker := NewTracker(3, 200, &logger)

	scope := tracker.BeginTracking("job1", &recordingSink{})
	defer scope.Close()

	for _, line := range []string{"one\n", "two\n", "three\n", "four\n"} {
		_, _ = scope.Stdout().Write([]byte(line))
	}

	logs := tracker.RecentLogs(10)
	if len(logs) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(logs))
	}
	if strings.Contains(logs[0], "one") {
		t.Fatalf("oldest line must be evicted, got %v", logs)
	}
	if !strings.Contains(logs[2], "four") {
		t.Fatalf("newest line must be last, got %v", logs)
	}
}

func TestTracker_SnapshotInactiveForOtherJobs(t *testing.T) {
	t.Parallel()
	tracker := newTestTracker(t)

	if snap := tracker.GetProgressInfo("job1"); snap.Active {
		t.Fatalf("nothing tracked yet, snapshot must be inactive")
	}

	scope := tracker.BeginTracking("job1", &recordingSink{})
	defer scope.Close()

	if snap := tracker.GetProgressInfo("other"); snap.Active {
		t.Fatalf("snapshot for a different job must be inactive")
	}
	if snap := tracker.GetProgressInfo(""); snap.Active {
		t.Fatalf("empty id must be inactive")
	}
}

func TestTracker_BeginTrackingClearsPreviousState(t *testing.T) {
	t.Parallel()
	tracker := newTestTracker(t)

	first := tracker.BeginTracking("job1", &recordingSink{})
	_, _ = first.Stdout().Write([]byte("old log line\n"))
	first.Close()

	scope := tracker.BeginTracking("job2", &recordingSink{})
	defer scope.Close()

	if logs := tracker.RecentLogs(10); len(logs) != 0 {
		t.Fatalf("new tracking scope must start clean, got %v", logs)
	}
	snap := tracker.GetProgressInfo("job2")
	if snap.Progress.Percentage != 0 {
		t.Fatalf("progress must reset between jobs, got %v", snap.Progress.Percentage)
	}
}

func TestScope_CloseDetachesForwarding(t *testing.T) {
	t.Parallel()
	tracker := newTestTracker(t)
	sink := &recordingSink{}

	scope := tracker.BeginTracking("job1", sink)
	_, _ = scope.Stdout().Write([]byte("45%|███       | 12/30 [00:12<00:18, 2.50it/s]\n"))
	scope.Close()
	scope.Close() // idempotent

	if sink.count() != 1 {
		t.Fatalf("expected 1 update before close, got %d", sink.count())
	}

	// Late output after detach must not reach the sink.
	_, _ = scope.Stdout().Write([]byte("90%|█████████ | 27/30 [00:54<00:06, 2.50it/s]\n"))
	if sink.count() != 1 {
		t.Fatalf("forwarding must stop after Close, got %d updates", sink.count())
	}
}

func TestScope_CloseFlushesPartialLine(t *testing.T) {
	t.Parallel()
	tracker := newTestTracker(t)

	scope := tracker.BeginTracking("job1", &recordingSink{})
	_, _ = scope.Stdout().Write([]byte("truncated final output"))
	scope.Close()

	logs := tracker.RecentLogs(10)
	if len(logs) != 1 || !strings.Contains(logs[0], "truncated final output") {
		t.Fatalf("expected the partial line flushed on close, got %v", logs)
	}
}

func TestTracker_PanickingCallbackDoesNotStopOthers(t *testing.T) {
	t.Parallel()
	tracker := newTestTracker(t)
	sink := &recordingSink{}

	var seen []float64
	tracker.AddProgressCallback(func(model.ProgressInfo) { panic("observer bug") })
	tracker.AddProgressCallback(func(info model.ProgressInfo) { seen = append(seen, info.Percentage) })

	var logSeen []string
	tracker.AddLogCallback(func(string) { panic("log observer bug") })
	tracker.AddLogCallback(func(line string) { logSeen = append(logSeen, line) })

	scope := tracker.BeginTracking("job1", sink)
	defer scope.Close()

	_, _ = scope.Stdout().Write([]byte("45%|███       | 12/30 [00:12<00:18, 2.50it/s]\n"))
	_, _ = scope.Stdout().Write([]byte("plain log line\n"))

	if len(seen) != 1 || seen[0] != 45.0 {
		t.Fatalf("later progress observer must still run, got %v", seen)
	}
	if len(logSeen) != 1 || !strings.Contains(logSeen[0], "plain log line") {
		t.Fatalf("later log observer must still run, got %v", logSeen)
	}
	if sink.count() != 1 {
		t.Fatalf("sink forwarding must survive observer panics, got %d", sink.count())
	}
}

func TestLineWriter_SplitsOnNewlineAndCarriageReturn(t *testing.T) {
	t.Parallel()

	var lines []string
	w := &lineWriter{emit: func(line string) { lines = append(lines, line) }}

	_, _ = w.Write([]byte("a\rb\nc"))
	_, _ = w.Write([]byte("d\r"))
	w.flush()

	want := []string{"a", "b", "cd"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %v", len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}
