package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"fennec/internal/config"
	"fennec/internal/daemon"
	"fennec/internal/logging"
	"fennec/internal/models"
	"fennec/internal/store"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	registry := models.NewRegistry(cfg)

	d := daemon.New(cfg, st, registry, logger)
	if err := d.Run(ctx); err != nil {
		logger.Error("daemon exited", logging.Error(err))
	}
	logger.Info("fennecd shutting down")
}
