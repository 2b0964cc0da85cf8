package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"

	"github.com/jaki95/video-clip-tagger/config"
	"github.com/jaki95/video-clip-tagger/internal/media"
	"github.com/jaki95/video-clip-tagger/internal/pipeline"
	"github.com/jaki95/video-clip-tagger/internal/server"
	"github.com/jaki95/video-clip-tagger/internal/storage"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "Path to the YAML config file")
	port := flag.String("port", "", "Server port (overrides config)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	// Setup logging
	slog.SetDefault(cfg.NewLogger(true))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.Storage, cfg.Server.OutputDir)
	if err != nil {
		slog.Error("Failed to create storage", "type", cfg.Storage.Type, "error", err)
		os.Exit(1)
	}

	tool := media.NewFFmpeg(media.Config{
		FFmpegPath:   cfg.FFmpeg.FFmpegPath,
		FFprobePath:  cfg.FFmpeg.FFprobePath,
		AudioBitrate: cfg.FFmpeg.AudioBitrate,
	})
	runner := pipeline.New(tool, pipeline.WithValidator(validator.New(validator.WithRequiredStructEnabled())))

	srv := server.New(cfg, runner, store)

	slog.Info("Starting video clip tagger API server", "port", cfg.Server.Port, "storage", cfg.Storage.Type)
	if err := srv.Start(ctx); err != nil {
		slog.Error("Server failed", "error", err)
		stop()
		os.Exit(1)
	}
}
