package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/form16-extractor/internal/app"
	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/logging"
	"github.com/joseph-ayodele/form16-extractor/internal/server"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	logger.Info("config loaded", zap.Stringer("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("build components", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close components", zap.Error(err))
		}
	}()

	srv := server.New(server.Config{
		HTTPAddr:      cfg.Server.HTTPAddr,
		GRPCAddr:      cfg.Server.GRPCAddr,
		ShutdownGrace: cfg.Server.ShutdownGrace,
		HTTP: server.HTTPConfig{
			MaxUploadBytes: cfg.Server.MaxUploadBytes(),
			RateLimitRPS:   cfg.Server.RateLimitRPS,
			RateLimitBurst: cfg.Server.RateLimitBurst,
			CORSOrigin:     cfg.Server.CORSOrigin,
			Health:         a.Journal,
		},
	}, a.Processor, a.Exporter, logger)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
	}
	logger.Info("stopped")
}
