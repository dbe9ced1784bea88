/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Andrewske/music-minion-radio/internal/cache"
	"github.com/Andrewske/music-minion-radio/internal/models"
	"github.com/Andrewske/music-minion-radio/internal/telemetry"
)

// Lookup answers "what is on station S right now" against the stored
// schedule. It is the hot read path, served by an indexed point query and
// optionally a Redis cache in front of it.
type Lookup struct {
	db     *gorm.DB
	logger zerolog.Logger
	cache  *cache.Cache
}

// NewLookup constructs a schedule lookup service.
func NewLookup(db *gorm.DB, logger zerolog.Logger) *Lookup {
	return &Lookup{db: db, logger: logger}
}

// SetCache attaches a Redis cache. Without one every lookup hits the
// database directly.
func (l *Lookup) SetCache(c *cache.Cache) {
	l.cache = c
}

// NowPlaying returns the scheduled row covering the instant at on the given
// station, or nil when no row covers it. Rows from the previous air date are
// consulted too, since a midnight-wrapping range stores rows whose EndsAt
// crosses into the next day.
func (l *Lookup) NowPlaying(ctx context.Context, stationID string, at time.Time) (*models.ScheduledTrack, error) {
	if l.cache != nil {
		if hit, ok := l.cache.GetNowPlaying(ctx, stationID, at); ok {
			telemetry.NowPlayingLookupsTotal.WithLabelValues("cache_hit").Inc()
			return &models.ScheduledTrack{
				ID:          hit.ScheduledID,
				StationID:   stationID,
				TrackID:     hit.TrackID,
				SourceType:  hit.SourceType,
				SourceURI:   hit.SourceURI,
				StartsAt:    hit.StartsAt,
				EndsAt:      hit.EndsAt,
				Position:    hit.Position,
				TimeRangeID: hit.TimeRangeID,
			}, nil
		}
	}

	loc := l.stationLocation(ctx, stationID)
	local := at.In(loc)

	// Today's rows first, then yesterday's in case a wrapped range from the
	// prior build is still airing.
	airDates := []string{
		local.Format("2006-01-02"),
		local.AddDate(0, 0, -1).Format("2006-01-02"),
	}
	for _, airDate := range airDates {
		row, err := l.pointQuery(ctx, stationID, airDate, at)
		if err != nil {
			telemetry.NowPlayingLookupsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		if row != nil {
			telemetry.NowPlayingLookupsTotal.WithLabelValues("hit").Inc()
			if l.cache != nil {
				l.cache.SetNowPlaying(ctx, stationID, cache.CachedNowPlaying{
					ScheduledID: row.ID,
					TrackID:     row.TrackID,
					SourceType:  row.SourceType,
					SourceURI:   row.SourceURI,
					StartsAt:    row.StartsAt,
					EndsAt:      row.EndsAt,
					Position:    row.Position,
					TimeRangeID: row.TimeRangeID,
				})
			}
			return row, nil
		}
	}
	telemetry.NowPlayingLookupsTotal.WithLabelValues("miss").Inc()
	return nil, nil
}

// Upcoming returns schedule rows starting within [from, from+horizon),
// ordered by start time.
func (l *Lookup) Upcoming(ctx context.Context, stationID string, from time.Time, horizon time.Duration) ([]models.ScheduledTrack, error) {
	loc := l.stationLocation(ctx, stationID)
	local := from.In(loc)
	until := from.Add(horizon)

	// Yesterday's rows matter too: a midnight-wrapping range files its
	// post-midnight rows under the build day's air date.
	airDates := []string{
		local.AddDate(0, 0, -1).Format("2006-01-02"),
		local.Format("2006-01-02"),
		local.AddDate(0, 0, 1).Format("2006-01-02"),
	}
	var rows []models.ScheduledTrack
	err := l.db.WithContext(ctx).
		Where("station_id = ? AND air_date IN ? AND starts_at >= ? AND starts_at < ?",
			stationID, airDates, from, until).
		Order("starts_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("upcoming schedule for %s: %w", stationID, err)
	}
	return rows, nil
}

// Rows returns the full stored schedule for (station, date) in play order.
func (l *Lookup) Rows(ctx context.Context, stationID, airDate string) ([]models.ScheduledTrack, error) {
	var rows []models.ScheduledTrack
	err := l.db.WithContext(ctx).
		Where("station_id = ? AND air_date = ?", stationID, airDate).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("schedule rows for %s on %s: %w", stationID, airDate, err)
	}
	return rows, nil
}

func (l *Lookup) pointQuery(ctx context.Context, stationID, airDate string, at time.Time) (*models.ScheduledTrack, error) {
	var row models.ScheduledTrack
	err := l.db.WithContext(ctx).
		Where("station_id = ? AND air_date = ? AND starts_at <= ? AND ends_at > ?",
			stationID, airDate, at, at).
		Order("position ASC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("now playing lookup for %s: %w", stationID, err)
	}
	return &row, nil
}

func (l *Lookup) stationLocation(ctx context.Context, stationID string) *time.Location {
	var station models.Station
	if err := l.db.WithContext(ctx).Select("timezone").First(&station, "id = ?", stationID).Error; err != nil {
		return time.UTC
	}
	if station.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(station.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
