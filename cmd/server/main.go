package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rfaria/studydeck/internal/anki"
	"github.com/rfaria/studydeck/internal/api"
	"github.com/rfaria/studydeck/internal/config"
	"github.com/rfaria/studydeck/internal/db"
	"github.com/rfaria/studydeck/internal/importer"
	"github.com/rfaria/studydeck/internal/logger"
	"github.com/rfaria/studydeck/internal/repository/sqlite"
	"github.com/rfaria/studydeck/internal/services"
	"github.com/rfaria/studydeck/internal/worker"
)

func main() {
	cfg := config.Load()

	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)

	log.Info("===========================================")
	log.Info("StudyDeck Server Starting")
	log.Info("===========================================")
	if err := cfg.Validate(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
	log.Info("configuration loaded")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("import_worker_count=%d", cfg.ImportWorkerCount)
	log.Debug("import_queue_size=%d", cfg.ImportQueueSize)
	log.Debug("max_archive_bytes=%d", cfg.MaxArchiveBytes)
	log.Debug("min_ease_factor=%g", cfg.MinEaseFactor)
	log.Debug("default_ease_factor=%g", cfg.DefaultEaseFactor)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()

	importPool := worker.NewPool(cfg.ImportWorkerCount, cfg.ImportQueueSize)

	deckRepo := sqlite.NewDeckRepository(database.DB)
	imp := importer.New(importPool, importer.Options{
		Schedule: anki.ScheduleOptions{
			MinEaseFactor:     cfg.MinEaseFactor,
			DefaultEaseFactor: cfg.DefaultEaseFactor,
		},
	})

	srv := &api.Server{
		ImportService:   services.NewImportService(imp, deckRepo),
		DeckService:     services.NewDeckService(deckRepo),
		MaxArchiveBytes: cfg.MaxArchiveBytes,
	}

	ctx, cancel := context.WithCancel(context.Background())
	importPool.Start(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	log.Debug("stopping import pool")
	cancel()
	importPool.Stop()

	log.Info("===========================================")
	log.Info("StudyDeck Server Stopped")
	log.Info("===========================================")
}
