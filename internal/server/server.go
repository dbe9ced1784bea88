/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires configuration, storage, cache, the event bus and the
// HTTP API into a runnable timeline engine.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Andrewske/music-minion-radio/internal/api"
	"github.com/Andrewske/music-minion-radio/internal/availability"
	"github.com/Andrewske/music-minion-radio/internal/cache"
	"github.com/Andrewske/music-minion-radio/internal/config"
	"github.com/Andrewske/music-minion-radio/internal/content"
	"github.com/Andrewske/music-minion-radio/internal/db"
	"github.com/Andrewske/music-minion-radio/internal/eventbus"
	"github.com/Andrewske/music-minion-radio/internal/events"
	"github.com/Andrewske/music-minion-radio/internal/fallback"
	"github.com/Andrewske/music-minion-radio/internal/models"
	"github.com/Andrewske/music-minion-radio/internal/schedule"
	"github.com/Andrewske/music-minion-radio/internal/telemetry"
	"github.com/Andrewske/music-minion-radio/internal/timeline"
	"gorm.io/gorm"
)

// Server owns the HTTP listener and every dependency behind it.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger
	router chi.Router

	httpServer    *http.Server
	metricsServer *http.Server
	closers       []func() error

	db    *gorm.DB
	cache *cache.Cache
	bus   *events.Bus

	api     *api.API
	builder *schedule.Builder
	lookup  *schedule.Lookup

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.api.Routes(router)
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: srv.router,
		// Header deadline guards against slowloris; the 60s middleware
		// timeout covers request bodies and handlers.
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if s.cfg.CacheEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		entityCache, err := cache.New(ctx, cache.Config{
			RedisAddr:     s.cfg.RedisAddr,
			RedisPassword: s.cfg.RedisPassword,
			RedisDB:       s.cfg.RedisDB,
		}, s.logger)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = entityCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	}

	if s.cfg.NATSEnabled {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		natsCfg.Token = s.cfg.NATSToken
		publisher, err := eventbus.NewPublisher(natsCfg, s.bus, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("NATS publisher failed, continuing without event mirroring")
		} else {
			s.DeferClose(publisher.Close)
		}
	}

	tun := s.cfg.Tunables
	resolver := content.NewResolver(database, s.logger)
	calc := timeline.NewCalculator(database, resolver, tun.MaxStationDepth, s.logger)

	checker := availability.NewSourceChecker(nil, tun.RemoteCheckTimeout(), s.logger)
	emergency := models.Track{
		ID:         tun.EmergencyTrack.ID,
		Title:      "Emergency programme",
		DurationMS: int64(tun.EmergencyTrack.DurationMS),
		SourceType: models.SourceLocal,
		SourceURI:  tun.EmergencyTrack.Path,
	}
	fb := fallback.NewResolver(database, calc, checker, emergency, tun.MaxRemoteChecks, s.logger)
	fb.SetBus(s.bus)

	s.builder = schedule.NewBuilder(database, resolver, schedule.Tunables{
		OvershootLimit: tun.OvershootLimit(),
		RemotePad:      tun.RemotePad(),
	}, s.logger)
	s.builder.SetBus(s.bus)

	s.lookup = schedule.NewLookup(database, s.logger)

	s.api = api.New(database, []byte(s.cfg.JWTSigningKey), calc, fb, s.builder, s.lookup, s.bus, s.logger)
	if s.cache != nil {
		s.api.SetCache(s.cache)
		s.lookup.SetCache(s.cache)
	}

	if s.cfg.MetricsBind != "" {
		if err := s.startMetricsListener(); err != nil {
			return err
		}
	}

	return nil
}

// startMetricsListener serves Prometheus metrics on a separate port so the
// scrape endpoint never sits behind the public API's auth or middleware.
func (s *Server) startMetricsListener() error {
	ln, err := net.Listen("tcp", s.cfg.MetricsBind)
	if err != nil {
		return fmt.Errorf("metrics listener on %s: %w", s.cfg.MetricsBind, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	s.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.metricsServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("metrics server exited")
		}
	}()
	s.logger.Info().Str("addr", s.cfg.MetricsBind).Msg("metrics listener started")
	s.DeferClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.metricsServer.Shutdown(ctx)
	})
	return nil
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel != nil {
		s.bgCancel()
	}
	s.bgWG.Wait()
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}
