package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetform/internal/backend"
	"budgetform/internal/cli"
	apphttp "budgetform/internal/http"
	applog "budgetform/internal/log"
	"budgetform/internal/middleware/ratelimit"
	"budgetform/internal/session"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := cli.SetupLogger(applog.ComponentApp)
	logger.Info("Starting budgetform")

	cfg := cli.LoadAndValidateConfig(logger)
	profile := cli.LoadProfile(logger, cfg)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Close(); err != nil {
			logger.Warn("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	// Seed files in DATA_DIR, then the profile's category lists on top.
	seeds := session.LoadSeeds(cfg.DataDir).Merge(session.Seeds{
		Fixed:    profile.Categories.Fixed,
		Variable: profile.Categories.Variable,
	})
	sessions := session.NewStore(cfg.SessionMaxCount, cfg.SessionTTL, seeds)
	sessionLog := logger.WithComponent(applog.ComponentSession)
	sessions.StartJanitor(5*time.Minute, func(removed int) {
		sessionLog.Debug("Expired sessions removed", "removed", removed, "active", sessions.Size())
	})
	defer sessions.Stop()

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Recorder:       result.Backend,
		Pinger:         result.Backend,
		Sessions:       sessions,
		Tiers:          profile.RatioTiers,
		Currency:       profile.Currency,
		Logger:         logger,
		TrustedProxies: cfg.TrustedProxies,
		CookieSecure:   cfg.CookieSecure,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
	})
	if err != nil {
		logger.Error("Failed to build server", applog.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting",
			"addr", srv.Addr,
			"backend", cfg.DataBackend,
			"currency", profile.Currency,
			"fixed_categories", len(seeds.Fixed),
			"variable_categories", len(seeds.Variable))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
