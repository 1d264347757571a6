package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hamza-Xoho/digital-surveyor/internal/assessclient"
	"github.com/Hamza-Xoho/digital-surveyor/internal/catalogue"
	"github.com/Hamza-Xoho/digital-surveyor/internal/config"
	"github.com/Hamza-Xoho/digital-surveyor/internal/db"
	"github.com/Hamza-Xoho/digital-surveyor/internal/envelope"
	"github.com/Hamza-Xoho/digital-surveyor/internal/httpapi"
	"github.com/Hamza-Xoho/digital-surveyor/internal/livefeed"
	"github.com/Hamza-Xoho/digital-surveyor/internal/mapsurface"
	"github.com/Hamza-Xoho/digital-surveyor/internal/metrics"
	"github.com/Hamza-Xoho/digital-surveyor/internal/retention"
	"github.com/Hamza-Xoho/digital-surveyor/internal/session"
	"github.com/Hamza-Xoho/digital-surveyor/internal/view"
)

const mapAnchorID = "map"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger level is not known yet.
		bootLogger := httpapi.NewLogger("info")
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := httpapi.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var pool *db.Pool
	if cfg.DatabaseURL != "" {
		p, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		if err := p.Migrate(ctx, logger); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
		pool = p
	}

	guard := session.NewGuard(session.NewMemoryStore())
	if cfg.SessionToken != "" {
		if !guard.IsValid(cfg.SessionToken) {
			logger.Warn().Msg("SESSION_TOKEN is malformed or expired; starting logged out")
		} else if err := guard.Set(cfg.SessionToken); err != nil {
			logger.Fatal().Err(err).Msg("failed to store session token")
		}
	}

	client, err := assessclient.New(logger.With().Str("component", "assessclient").Logger(), cfg.APIURL, guard, assessclient.Options{
		HTTPClient: &http.Client{Timeout: 90 * time.Second},
		Metrics:    m,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid backend url")
	}

	profiles := catalogue.New(logger.With().Str("component", "catalogue").Logger(), client)
	go func() {
		if err := profiles.Refresh(ctx); err != nil {
			logger.Warn().Err(err).Msg("initial vehicle catalogue load failed; envelopes wait for a refresh")
		}
	}()

	hub := livefeed.NewHub(logger.With().Str("component", "livefeed").Logger())
	surface := mapsurface.NewController(logger.With().Str("component", "mapsurface").Logger(), mapsurface.Options{
		TileAPIKey: cfg.TileAPIKey,
		Sink:       hub,
		Metrics:    m,
	})
	hub.Attach(surface)

	opts := view.Options{
		Profiles:  profiles,
		Projector: envelope.NewProjector(cfg.GeodesicEnvelope),
	}
	if pool != nil {
		opts.History = pool.Queries()
	}
	orchestrator := view.New(logger.With().Str("component", "view").Logger(), client, surface, opts)
	if _, err := orchestrator.Mount(ctx, mapsurface.NewAnchor(mapAnchorID)); err != nil {
		logger.Fatal().Err(err).Msg("failed to mount map surface")
	}

	if pool != nil {
		worker := retention.New(logger.With().Str("component", "retention").Logger(), pool.Queries(), retention.Options{
			Retention: cfg.HistoryRetention,
		}, m)
		go worker.Run(ctx)
	}

	h := httpapi.NewHandler(logger, httpapi.Deps{
		Pool:      pool,
		View:      orchestrator,
		Session:   guard,
		Catalogue: profiles,
		Metrics:   m,
		Feed:      hub,
		StaticDir: cfg.StaticDir,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("backend", cfg.APIURL).Msg("surveyor-view listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := orchestrator.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("map surface dispose failed")
	}
	logger.Info().Msg("shutdown complete")
}
