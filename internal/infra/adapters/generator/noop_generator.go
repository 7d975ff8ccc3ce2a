package generator

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"multitalk-demo/internal/domain/ports/adapter"
)

var _ adapter.VideoGenerator = (*NoopGenerator)(nil)

// NoopGenerator implements adapter.VideoGenerator for local/dev runs without
// model weights. It emits synthetic tqdm-style progress lines at a fixed
// pace instead of running real inference.
type NoopGenerator struct {
	// StepDelay is the pause between emitted steps; tests shrink it.
	StepDelay time.Duration
	// OutputDir receives the (empty) fake artifact path.
	OutputDir string
}

func NewNoopGenerator(outputDir string) *NoopGenerator {
	return &NoopGenerator{StepDelay: time.Second, OutputDir: outputDir}
}

func (g *NoopGenerator) Generate(ctx context.Context, req adapter.GenerationRequest, stdout, stderr io.Writer) (string, error) {
	steps := req.SamplingSteps
	if steps <= 0 {
		steps = 40
	}

	fmt.Fprintf(stdout, "Loading checkpoint shards\n")
	fmt.Fprintf(stdout, "Preparing audio embeddings\n")

	start := time.Now()
	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.StepDelay):
		}
		pct := i * 100 / steps
		elapsed := time.Since(start)
		remaining := time.Duration(steps-i) * g.StepDelay
		fmt.Fprintf(stdout, "%d%%|%s| %d/%d [%s<%s, %.2fit/s]\r",
			pct, bar(pct), i, steps,
			clock(elapsed), clock(remaining),
			float64(i)/elapsed.Seconds())
	}
	fmt.Fprintf(stdout, "\nSaving video\n")
	return filepath.Join(g.OutputDir, fmt.Sprintf("multitalk_output_%d.mp4", start.UnixNano())), nil
}

func bar(pct int) string {
	const width = 10
	filled := pct * width / 100
	out := make([]rune, width)
	for i := range out {
		if i < filled {
			out[i] = '█'
		} else {
			out[i] = ' '
		}
	}
	return string(out)
}

func clock(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
