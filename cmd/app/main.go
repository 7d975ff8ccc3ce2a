// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"multitalk-demo/internal/capture"
	"multitalk-demo/internal/config"
	"multitalk-demo/internal/domain/ports/adapter"
	gen "multitalk-demo/internal/infra/adapters/generator"
	"multitalk-demo/internal/infra/logging"
	"multitalk-demo/internal/infra/metrics"
	"multitalk-demo/internal/infra/sched"
	"multitalk-demo/internal/infra/web"
	"multitalk-demo/internal/infra/worker"
	"multitalk-demo/internal/queue"
	"multitalk-demo/internal/status"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop generator, console logs)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Runtime.Dev {
		log.Printf("[DEV MODE] Enabled")
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	for _, dir := range cfg.WarnMissingModelPaths() {
		logger.Warn().Str("dir", dir).Msg("model directory not found; update generator config or download weights")
	}

	// ---- Core components ----
	qm := queue.NewManager(cfg.Queue.HistoryLimit, logger)
	tracker := capture.NewTracker(cfg.Capture.LogBufferLines, cfg.Capture.OutputBufferLines, logger)

	// ---- Generator (external collaborator) ----
	var videoGen adapter.VideoGenerator
	if cfg.Generator.Command != "" {
		videoGen = gen.NewCmdGenerator(cfg.Generator, logger)
		logger.Info().Str("command", cfg.Generator.Command).Msg("generator: external command")
	} else {
		videoGen = gen.NewNoopGenerator(os.TempDir())
		logger.Info().Msg("generator: noop (dev)")
	}
	videoGen = gen.NewTimeoutGenerator(videoGen, cfg.Generator.Timeout)

	// ---- Worker + schedulers ----
	runner := worker.NewRunner(qm, tracker, videoGen, cfg.Worker.PollInterval, logger)
	go runner.Run(ctx)

	agg := status.NewAggregator(qm, tracker, 2*time.Second, logger)
	go agg.Run(ctx)

	purge := sched.NewPurgeWorker(cfg.Queue.PurgeEvery, cfg.Queue.PurgeMaxAge, qm, logger)
	go func() { _ = purge.Run(ctx) }()

	// ---- HTTP server ----
	srv := web.NewServer(qm, tracker, runner, agg, cfg, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Routes(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}
