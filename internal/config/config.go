// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type QueueConfig struct {
	// MaxQueueSize is the external admission cap enforced at the API layer;
	// the queue itself never rejects.
	MaxQueueSize int           `yaml:"max_queue_size"`
	HistoryLimit int           `yaml:"history_limit"`
	PurgeMaxAge  time.Duration `yaml:"purge_max_age"`
	PurgeEvery   time.Duration `yaml:"purge_every"`
}

type CaptureConfig struct {
	LogBufferLines    int `yaml:"log_buffer_lines"`
	OutputBufferLines int `yaml:"output_buffer_lines"`
}

type WorkerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type GeneratorConfig struct {
	// Command is the external inference command; empty selects the noop
	// generator (dev/demo without model weights).
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args"`
	CkptDir    string   `yaml:"ckpt_dir"`
	Wav2VecDir string   `yaml:"wav2vec_dir"`
	DeviceID   int      `yaml:"device_id"`

	Timeout time.Duration `yaml:"timeout"`

	// Generation defaults and limits, applied when a request omits or
	// exceeds them.
	DefaultSamplingSteps int     `yaml:"default_sampling_steps"`
	MinSamplingSteps     int     `yaml:"min_sampling_steps"`
	MaxSamplingSteps     int     `yaml:"max_sampling_steps"`
	DefaultTextScale     float64 `yaml:"default_text_scale"`
	DefaultAudioScale    float64 `yaml:"default_audio_scale"`
	MinGuideScale        float64 `yaml:"min_guide_scale"`
	MaxGuideScale        float64 `yaml:"max_guide_scale"`
	DefaultFrameNum      int     `yaml:"default_frame_num"`
	MaxFrameNum          int     `yaml:"max_frame_num"`
	DefaultSeed          int64   `yaml:"default_seed"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Queue     QueueConfig     `yaml:"queue"`
	Capture   CaptureConfig   `yaml:"capture"`
	Worker    WorkerConfig    `yaml:"worker"`
	Generator GeneratorConfig `yaml:"generator"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Queue.MaxQueueSize < 0 {
		return nil, errors.New("queue.max_queue_size must not be negative")
	}
	if cfg.Generator.Command == "" && !dev {
		return nil, errors.New("generator.command is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// LoadOrDefault reads the config file, falling back to Default when the
// file is absent in dev mode. Dev runs need no config on disk; any other
// load failure still surfaces.
func LoadOrDefault(path string, dev bool) (*Config, error) {
	cfg, err := LoadConfig(path, dev)
	if err != nil && dev && errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Default returns a config usable without a file, for tests and -dev runs.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Runtime.Dev = true
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 7860
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Queue.MaxQueueSize == 0 {
		cfg.Queue.MaxQueueSize = 10
	}
	if cfg.Queue.HistoryLimit <= 0 {
		cfg.Queue.HistoryLimit = 100
	}
	if cfg.Queue.PurgeMaxAge <= 0 {
		cfg.Queue.PurgeMaxAge = 24 * time.Hour
	}
	if cfg.Queue.PurgeEvery <= 0 {
		cfg.Queue.PurgeEvery = time.Hour
	}
	if cfg.Capture.LogBufferLines <= 0 {
		cfg.Capture.LogBufferLines = 100
	}
	if cfg.Capture.OutputBufferLines <= 0 {
		cfg.Capture.OutputBufferLines = 200
	}
	if cfg.Worker.PollInterval <= 0 {
		cfg.Worker.PollInterval = 500 * time.Millisecond
	}

	g := &cfg.Generator
	if g.CkptDir == "" {
		g.CkptDir = "weights/Wan2.1-I2V-14B-480P"
	}
	if g.Wav2VecDir == "" {
		g.Wav2VecDir = "weights/chinese-wav2vec2-base"
	}
	if g.Timeout <= 0 {
		g.Timeout = 5 * time.Minute
	}
	if g.DefaultSamplingSteps == 0 {
		g.DefaultSamplingSteps = 40
	}
	if g.MinSamplingSteps == 0 {
		g.MinSamplingSteps = 10
	}
	if g.MaxSamplingSteps == 0 {
		g.MaxSamplingSteps = 50
	}
	if g.DefaultTextScale == 0 {
		g.DefaultTextScale = 5.0
	}
	if g.DefaultAudioScale == 0 {
		g.DefaultAudioScale = 4.0
	}
	if g.MinGuideScale == 0 {
		g.MinGuideScale = 1.0
	}
	if g.MaxGuideScale == 0 {
		g.MaxGuideScale = 10.0
	}
	if g.DefaultFrameNum == 0 {
		g.DefaultFrameNum = 81
	}
	if g.MaxFrameNum == 0 {
		g.MaxFrameNum = 201
	}
	if g.DefaultSeed == 0 {
		g.DefaultSeed = 42
	}
}

// WarnMissingModelPaths reports model directories that do not exist. Missing
// weights are not fatal here: dev mode runs the noop generator without them.
func (cfg *Config) WarnMissingModelPaths() []string {
	var missing []string
	if _, err := os.Stat(cfg.Generator.CkptDir); err != nil {
		missing = append(missing, cfg.Generator.CkptDir)
	}
	if _, err := os.Stat(cfg.Generator.Wav2VecDir); err != nil {
		missing = append(missing, cfg.Generator.Wav2VecDir)
	}
	return missing
}
