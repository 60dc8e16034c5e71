package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/npezzotti/go-meet/internal/api"
	"github.com/npezzotti/go-meet/internal/blob"
	"github.com/npezzotti/go-meet/internal/config"
	"github.com/npezzotti/go-meet/internal/database"
	"github.com/npezzotti/go-meet/internal/logging"
	"github.com/npezzotti/go-meet/internal/server"
	"github.com/npezzotti/go-meet/internal/stats"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		logging.New(logging.Config{}, os.Stderr).Error("config", "error", err)
		return 2
	}

	logger := logging.New(cfg.Logging, os.Stderr)

	db, err := database.NewPgMeetRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Error("db open", "error", err)
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("db close", "error", err)
		}
	}()

	if cfg.Migrate {
		if err := db.Migrate(); err != nil {
			logger.Error("migrate", "error", err)
			return 1
		}
		logger.Info("database migrations applied")
	}

	blobs, err := blob.NewFileStore(cfg.Blob.Dir, cfg.Blob.BaseURL)
	if err != nil {
		logger.Error("blob store", "error", err)
		return 1
	}

	r := chi.NewRouter()

	statsUpdater := stats.NewStatsUpdater(r)

	relay := server.NewRelay(logger, statsUpdater, server.Options{
		MaxChatHistory:  cfg.Realtime.MaxChatHistory,
		MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
		SendQueue:       cfg.Realtime.SendQueue,
		PongWait:        cfg.Realtime.PongWait,
	})

	srv := api.NewMeetApp(r, logger, relay, db, blobs, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	status := 0
	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", "error", err)
			status = 1
		}
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
		status = 1
	}

	if err := relay.Shutdown(shutDownCtx); err != nil {
		logger.Error("relay shutdown", "error", err)
		status = 1
	}

	logger.Info("shutdown complete")
	return status
}
