/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for the hot read paths:
// the station list and per-station now-playing answers. Every operation
// degrades to a miss on Redis errors so the engine keeps serving from the
// database when Redis is down.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Andrewske/music-minion-radio/internal/models"
)

// Default TTLs. Now-playing entries additionally expire at the scheduled end
// of the cached row, whichever comes first.
const (
	DefaultStationListTTL = 5 * time.Minute
	DefaultNowPlayingTTL  = 30 * time.Second
)

// Key prefixes.
const (
	keyStationList = "minion:cache:stations"
	keyNowPlaying  = "minion:cache:now_playing:" // + station_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StationListTTL time.Duration
	NowPlayingTTL  time.Duration
}

// Cache wraps the Redis client.
type Cache struct {
	client         *redis.Client
	logger         zerolog.Logger
	stationListTTL time.Duration
	nowPlayingTTL  time.Duration
}

// CachedStation is the station list projection kept in Redis.
type CachedStation struct {
	ID     string             `json:"id"`
	Name   string             `json:"name"`
	Kind   models.StationKind `json:"kind"`
	Mode   models.StationMode `json:"mode"`
	Active bool               `json:"active"`
}

// CachedNowPlaying is a cached schedule lookup answer.
type CachedNowPlaying struct {
	ScheduledID string            `json:"scheduled_id"`
	TrackID     string            `json:"track_id"`
	SourceType  models.SourceType `json:"source_type"`
	SourceURI   string            `json:"source_uri"`
	StartsAt    time.Time         `json:"starts_at"`
	EndsAt      time.Time         `json:"ends_at"`
	Position    int               `json:"position"`
	TimeRangeID string            `json:"time_range_id"`
}

// New connects to Redis and verifies the connection. Returns an error when
// Redis is unreachable so the caller can decide to run uncached.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	c := &Cache{
		client:         client,
		logger:         logger,
		stationListTTL: cfg.StationListTTL,
		nowPlayingTTL:  cfg.NowPlayingTTL,
	}
	if c.stationListTTL <= 0 {
		c.stationListTTL = DefaultStationListTTL
	}
	if c.nowPlayingTTL <= 0 {
		c.nowPlayingTTL = DefaultNowPlayingTTL
	}
	return c, nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// GetStationList returns the cached station list, or ok=false on miss/error.
func (c *Cache) GetStationList(ctx context.Context) ([]CachedStation, bool) {
	data, err := c.client.Get(ctx, keyStationList).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug().Err(err).Msg("station list cache read failed")
		}
		return nil, false
	}
	var stations []CachedStation
	if err := json.Unmarshal(data, &stations); err != nil {
		return nil, false
	}
	return stations, true
}

// SetStationList caches the station list.
func (c *Cache) SetStationList(ctx context.Context, stations []CachedStation) error {
	data, err := json.Marshal(stations)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyStationList, data, c.stationListTTL).Err()
}

// InvalidateStationList drops the cached station list.
func (c *Cache) InvalidateStationList(ctx context.Context) {
	if err := c.client.Del(ctx, keyStationList).Err(); err != nil {
		c.logger.Debug().Err(err).Msg("station list cache invalidation failed")
	}
}

// GetNowPlaying returns the cached now-playing row for a station if it still
// covers the given instant.
func (c *Cache) GetNowPlaying(ctx context.Context, stationID string, at time.Time) (*CachedNowPlaying, bool) {
	data, err := c.client.Get(ctx, keyNowPlaying+stationID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug().Err(err).Str("station", stationID).Msg("now playing cache read failed")
		}
		return nil, false
	}
	var entry CachedNowPlaying
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if at.Before(entry.StartsAt) || !at.Before(entry.EndsAt) {
		return nil, false
	}
	return &entry, true
}

// SetNowPlaying caches a now-playing answer. The TTL is clamped to the
// scheduled end so a stale row never outlives its slot.
func (c *Cache) SetNowPlaying(ctx context.Context, stationID string, entry CachedNowPlaying) error {
	ttl := c.nowPlayingTTL
	if remaining := time.Until(entry.EndsAt); remaining > 0 && remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyNowPlaying+stationID, data, ttl).Err()
}

// InvalidateNowPlaying drops the cached answer for a station, e.g. after a
// schedule rebuild.
func (c *Cache) InvalidateNowPlaying(ctx context.Context, stationID string) {
	if err := c.client.Del(ctx, keyNowPlaying+stationID).Err(); err != nil {
		c.logger.Debug().Err(err).Str("station", stationID).Msg("now playing cache invalidation failed")
	}
}
