// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/dilemma-gg/party/internal/anticheat"
	"github.com/dilemma-gg/party/internal/archive"
	"github.com/dilemma-gg/party/internal/auth"
	"github.com/dilemma-gg/party/internal/broadcast"
	"github.com/dilemma-gg/party/internal/config"
	"github.com/dilemma-gg/party/internal/database"
	"github.com/dilemma-gg/party/internal/handlers"
	"github.com/dilemma-gg/party/internal/middleware"
	"github.com/dilemma-gg/party/internal/party"
	"github.com/dilemma-gg/party/internal/security"
	"github.com/dilemma-gg/party/internal/tournament"
)

func main() {
	auth.Init()

	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	cfg := config.Load()
	ctx := context.Background()

	// Postgres and Redis are both optional; without them the service runs
	// memory-only.
	var store *database.Store
	if pool, err := database.Connect(ctx); err != nil {
		logger.WithError(err).Warn("postgres unavailable, running without persistence")
	} else {
		store = database.NewStore(pool, logger)
		defer store.Close()
	}
	var lobbyRepo party.Repository
	var tournamentRepo tournament.Repository
	if store != nil {
		lobbyRepo = store
		tournamentRepo = store
	}

	var archiver tournament.Archiver
	if rdb, err := archive.ConnectRedis(ctx); err != nil {
		logger.WithError(err).Warn("redis unavailable, tournament history will not be archived")
	} else {
		archiver = archive.NewQueueArchiver(rdb, "", logger)
		defer rdb.Close()
	}

	hub := broadcast.NewHub(logger)
	gate := security.NewGate(cfg, logger)
	validator := anticheat.NewValidator(cfg, logger)
	registry := party.NewRegistry(cfg, logger, hub, lobbyRepo)
	engine := tournament.NewEngine(cfg, logger, registry, validator, hub, archiver, tournamentRepo)
	srv := handlers.NewPartyServer(cfg, logger, hub, registry, engine, gate, validator)

	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(logger)

	mux.Handle("/auth/guest", logged(http.HandlerFunc(srv.GuestTokenHandler)))
	mux.Handle("/party/create", logged(http.HandlerFunc(srv.CreateLobbyHandler)))
	mux.Handle("/party/join", logged(http.HandlerFunc(srv.JoinLobbyHandler)))
	mux.Handle("/party/list", logged(http.HandlerFunc(srv.ListLobbiesHandler)))
	mux.Handle("/party/standings", logged(http.HandlerFunc(srv.StandingsHandler)))
	mux.Handle("/party/ws/", logged(srv.PartyWSHandler()))

	// Periodic maintenance: trim rate-limit history and expire idle sessions.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				gate.Housekeep()
				validator.SweepStaleSessions()
			}
		}
	}()

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Infof("Running on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
	engine.Shutdown(shutdownCtx)
}
