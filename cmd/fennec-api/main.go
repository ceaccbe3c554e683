package main

import (
	"flag"
	"log"
	"os"
	"time"

	"fennec/internal/config"
	"fennec/internal/logging"
	"fennec/internal/models"
	"fennec/internal/server"
	"fennec/internal/store"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
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

	srv := server.New(cfg, st, registry, logger, server.Options{
		// Exit cleanly so the supervisor restarts the process with fresh
		// mount points; used by the reconnect-media admin action.
		Restart: func() {
			time.Sleep(500 * time.Millisecond)
			os.Exit(0)
		},
	})
	if err := srv.Serve(); err != nil {
		logger.Error("api server exited", logging.Error(err))
		os.Exit(1)
	}
}
