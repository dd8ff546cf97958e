package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"curator/internal/config"
	"curator/internal/daemon"
	"curator/internal/identity"
	"curator/internal/logging"
	"curator/internal/store"
	"curator/internal/sync"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewWithFile(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}, filepath.Join(cfg.Paths.LogDir, "curator.log"))
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		logger.Error("build provider registry", logging.Error(err))
		_ = st.Close()
		os.Exit(1)
	}

	resolver := identity.NewResolver(st, identity.Options{
		SimilarityThreshold: cfg.Identity.SimilarityThreshold,
		AmbiguityMargin:     cfg.Identity.AmbiguityMargin,
		YearTolerance:       cfg.Identity.YearTolerance,
	}, logger)

	orchestrator := sync.New(st, registry, resolver, sync.OptionsFromConfig(cfg), logger)

	d, err := daemon.New(cfg, st, registry, orchestrator, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = st.Close()
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("curatord shutting down")
}
