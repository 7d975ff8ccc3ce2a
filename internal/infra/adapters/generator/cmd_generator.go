package generator

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"multitalk-demo/internal/config"
	"multitalk-demo/internal/domain"
	"multitalk-demo/internal/domain/model"
	"multitalk-demo/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.VideoGenerator = (*CmdGenerator)(nil)

// CmdGenerator runs the external inference command once per job, wiring its
// stdout/stderr into the capture writers so tqdm output reaches the
// progress tracker. The command is expected to print the output video path
// handling to its own log; the path we return is derived from the request.
type CmdGenerator struct {
	cfg config.GeneratorConfig
	log *zerolog.Logger
}

func NewCmdGenerator(cfg config.GeneratorConfig, logger *zerolog.Logger) *CmdGenerator {
	glog := logger.With().Str("component", "CmdGenerator").Logger()
	return &CmdGenerator{cfg: cfg, log: &glog}
}

func (g *CmdGenerator) Generate(ctx context.Context, req adapter.GenerationRequest, stdout, stderr io.Writer) (string, error) {
	args := append([]string{}, g.cfg.Args...)
	args = append(args,
		"--ckpt_dir", g.cfg.CkptDir,
		"--wav2vec_dir", g.cfg.Wav2VecDir,
		"--device_id", strconv.Itoa(g.cfg.DeviceID),
		"--mode", string(req.Kind),
		"--prompt", req.Prompt,
		"--cond_image", req.ImagePath,
		"--sampling_steps", strconv.Itoa(req.SamplingSteps),
		"--text_guide_scale", strconv.FormatFloat(req.TextGuideScale, 'f', -1, 64),
		"--audio_guide_scale", strconv.FormatFloat(req.AudioGuideScale, 'f', -1, 64),
		"--frame_num", strconv.Itoa(req.FrameNum),
		"--seed", strconv.FormatInt(req.Seed, 10),
	)
	for _, p := range req.AudioPaths {
		args = append(args, "--cond_audio", p)
	}
	if req.Kind == model.JobKindMulti && req.AudioType != "" {
		args = append(args, "--audio_type", req.AudioType)
	}
	outPath := fmt.Sprintf("%s.mp4", req.ImagePath)
	args = append(args, "--save_file", outPath)

	cmd := exec.CommandContext(ctx, g.cfg.Command, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	g.log.Info().Str("command", g.cfg.Command).Str("mode", string(req.Kind)).Msg("starting generation")
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return outPath, nil
}
