package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smart-scheduler/internal/ai"
	"smart-scheduler/internal/analytics"
	"smart-scheduler/internal/auth"
	"smart-scheduler/internal/config"
	"smart-scheduler/internal/db"
	"smart-scheduler/internal/digest"
	"smart-scheduler/internal/logx"
	"smart-scheduler/internal/schedule"
	"smart-scheduler/internal/server"
	"smart-scheduler/internal/store"
)

func main() {
	cfg := config.Load()
	log := logx.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(cfg.DBDriver, cfg.ConnString())
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to connect DB")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Str("driver", database.Driver).Msg("database ready")

	policy := config.NewScheduleManager(cfg.PolicyFile, logx.Component(log, "policy"))
	sched, err := policy.Load()
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.PolicyFile).Msg("failed to load policy")
	}
	go func() {
		if err := policy.Watch(ctx); err != nil {
			log.Error().Err(err).Msg("policy watcher stopped")
		}
	}()

	var summarizer ai.Summarizer
	if cfg.OpenAIKey != "" {
		summarizer = ai.New(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.AIRatePerSec)
		log.Info().Str("model", cfg.OpenAIModel).Msg("summaries enabled")
	}

	st := store.New(database, logx.Component(log, "store"))
	events := analytics.New(database)
	svc := schedule.New(st, st, policy, summarizer, events, logx.Component(log, "schedule"))

	am := auth.New([]byte(cfg.JWTSecret))
	if !am.Enabled() {
		log.Warn().Int("owner", auth.LocalUserID).Msg("JWT_SECRET empty, running without authentication")
	}

	if cfg.RefreshCron != "" && len(cfg.RefreshOwners) > 0 {
		ref, err := digest.New(cfg.RefreshCron, cfg.RefreshOwners, svc, events, log)
		if err != nil {
			log.Fatal().Err(err).Msg("bad REFRESH_CRON")
		}
		ref.Summary = summarizer != nil
		if err := ref.Start(ctx, sched.Policy.Location); err != nil {
			log.Fatal().Err(err).Msg("failed to start refresh")
		}
		defer ref.Stop()
		policy.OnChange(func(s config.Schedule) {
			if err := ref.Relocate(s.Policy.Location); err != nil {
				log.Error().Err(err).Msg("failed to move refresh to new timezone")
			}
		})
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.New(server.Deps{
			Store:       st,
			Schedule:    svc,
			Events:      events,
			Auth:        am,
			CORSOrigins: cfg.CORSOrigins,
			Logger:      log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API server is running")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("stopped")
}
