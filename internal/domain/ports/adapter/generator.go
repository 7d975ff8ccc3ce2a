package adapter

import (
	"context"
	"io"

	"multitalk-demo/internal/domain/model"
)

// GenerationRequest carries everything the external pipeline needs for one
// run. Audio/image preprocessing happened upstream; these are plain paths.
type GenerationRequest struct {
	Kind      model.JobKind
	Prompt    string
	ImagePath string
	// AudioPaths holds one path for single-person jobs, two for multi.
	AudioPaths []string
	// AudioType is "add" (sequential) or "para" (parallel); multi only.
	AudioType string

	SamplingSteps   int
	TextGuideScale  float64
	AudioGuideScale float64
	FrameNum        int
	Seed            int64
}

// VideoGenerator is the boundary to the generation collaborator. The
// implementation is expected to emit human-readable progress lines
// (tqdm-style percentage markers) on the provided writers while it runs.
// Generate blocks until the run finishes and returns the output video path.
type VideoGenerator interface {
	Generate(ctx context.Context, req GenerationRequest, stdout, stderr io.Writer) (string, error)
}
