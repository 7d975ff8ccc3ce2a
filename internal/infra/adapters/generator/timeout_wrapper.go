package generator

import (
	"context"
	"io"
	"time"

	"multitalk-demo/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.VideoGenerator = (*timeoutGenerator)(nil)

type timeoutGenerator struct {
	inner   adapter.VideoGenerator
	timeout time.Duration
}

// NewTimeoutGenerator bounds each generation run. The queue core enforces
// no timeout itself; this wrapper is the collaborator-side guard.
func NewTimeoutGenerator(inner adapter.VideoGenerator, timeout time.Duration) adapter.VideoGenerator {
	if timeout <= 0 {
		return inner
	}
	return &timeoutGenerator{inner: inner, timeout: timeout}
}

func (t *timeoutGenerator) Generate(ctx context.Context, req adapter.GenerationRequest, stdout, stderr io.Writer) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Generate(runCtx, req, stdout, stderr)
}
