/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP surface of the timeline engine: public
// polling endpoints for player clients and an authenticated admin API for
// stations, playlists, schedules and skips.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Andrewske/music-minion-radio/internal/auth"
	"github.com/Andrewske/music-minion-radio/internal/cache"
	"github.com/Andrewske/music-minion-radio/internal/events"
	"github.com/Andrewske/music-minion-radio/internal/fallback"
	"github.com/Andrewske/music-minion-radio/internal/schedule"
	"github.com/Andrewske/music-minion-radio/internal/timeline"
	"github.com/Andrewske/music-minion-radio/internal/version"
)

// API exposes HTTP handlers.
type API struct {
	db        *gorm.DB
	jwtSecret []byte
	calc      *timeline.Calculator
	resolver  *fallback.Resolver
	builder   *schedule.Builder
	lookup    *schedule.Lookup
	bus       *events.Bus
	cache     *cache.Cache
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(db *gorm.DB, jwtSecret []byte, calc *timeline.Calculator, resolver *fallback.Resolver, builder *schedule.Builder, lookup *schedule.Lookup, bus *events.Bus, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		jwtSecret: jwtSecret,
		calc:      calc,
		resolver:  resolver,
		builder:   builder,
		lookup:    lookup,
		bus:       bus,
		logger:    logger,
	}
}

// SetCache attaches a Redis cache for station list reads and invalidation.
func (a *API) SetCache(c *cache.Cache) {
	a.cache = c
}

// Routes mounts API routes on provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		// Public endpoints (no auth required)
		r.Get("/public/stations", a.handlePublicStations)
		r.Get("/public/now", a.handlePublicNow)
		r.Get("/public/next", a.handlePublicNext)
		r.Get("/public/schedule", a.handlePublicSchedule)

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Route("/stations", func(r chi.Router) {
				r.Get("/", a.handleStationsList)
				r.Post("/", a.handleStationsCreate)
				r.Route("/{stationID}", func(r chi.Router) {
					r.Get("/", a.handleStationsGet)
					r.Patch("/", a.handleStationsUpdate)
					r.Delete("/", a.handleStationsDelete)
					r.Post("/activate", a.handleStationActivate)
					r.Route("/time-ranges", func(tr chi.Router) {
						tr.Get("/", a.handleTimeRangesList)
						tr.Post("/", a.handleTimeRangesCreate)
						tr.Delete("/{rangeID}", a.handleTimeRangesDelete)
					})
				})
			})

			pr.Route("/playlists", func(r chi.Router) {
				r.Get("/", a.handlePlaylistsList)
				r.Post("/", a.handlePlaylistsCreate)
				r.Route("/{playlistID}", func(plr chi.Router) {
					plr.Get("/", a.handlePlaylistsGet)
					plr.Post("/items", a.handlePlaylistItemsAdd)
					plr.Delete("/items/{trackID}", a.handlePlaylistItemsRemove)
				})
			})

			pr.Route("/tracks", func(r chi.Router) {
				r.Get("/", a.handleTracksList)
				r.Post("/", a.handleTracksCreate)
			})

			pr.Get("/resolve", a.handleResolve)

			pr.Route("/schedule", func(r chi.Router) {
				r.Get("/", a.handleScheduleRows)
				r.Post("/build", a.handleScheduleBuild)
			})

			pr.Route("/skips", func(r chi.Router) {
				r.Get("/", a.handleSkipsList)
				r.Delete("/{skipID}", a.handleSkipDelete)
				r.Post("/reset", a.handleSkipsReset)
			})

			pr.Route("/keys", func(r chi.Router) {
				r.Get("/", a.handleAPIKeysList)
				r.Post("/", a.handleAPIKeysCreate)
				r.Post("/{keyID}/revoke", a.handleAPIKeyRevoke)
				r.Delete("/{keyID}", a.handleAPIKeyDelete)
			})
		})
	})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.MiddlewareWithJWT(a.db, a.jwtSecret)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
