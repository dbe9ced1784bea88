/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule pre-computes and serves the daily playout plan for meta
// stations: a flat sequence of (track, start, end) rows for one calendar
// date, rebuilt nightly or on demand and read by point lookup.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Andrewske/music-minion-radio/internal/content"
	"github.com/Andrewske/music-minion-radio/internal/events"
	"github.com/Andrewske/music-minion-radio/internal/models"
	"github.com/Andrewske/music-minion-radio/internal/telemetry"
)

// Builder tunables. Exposed through config; the defaults match expected
// behavior.
const (
	// DefaultOvershootLimit is how far past a range boundary the last track
	// of a range may run before the builder looks for a shorter substitute.
	DefaultOvershootLimit = 5 * time.Minute
	// DefaultRemotePad is added after remote-source tracks to cover
	// buffering latency before the next track begins.
	DefaultRemotePad = 3 * time.Second
)

// Tunables adjusts builder behavior.
type Tunables struct {
	OvershootLimit time.Duration
	RemotePad      time.Duration
}

func (t Tunables) withDefaults() Tunables {
	if t.OvershootLimit <= 0 {
		t.OvershootLimit = DefaultOvershootLimit
	}
	if t.RemotePad <= 0 {
		t.RemotePad = DefaultRemotePad
	}
	return t
}

// Builder materializes daily schedules for meta stations.
type Builder struct {
	db       *gorm.DB
	content  *content.Resolver
	logger   zerolog.Logger
	bus      *events.Bus
	tunables Tunables
}

// NewBuilder constructs a schedule builder.
func NewBuilder(db *gorm.DB, resolver *content.Resolver, tunables Tunables, logger zerolog.Logger) *Builder {
	return &Builder{
		db:       db,
		content:  resolver,
		logger:   logger,
		tunables: tunables.withDefaults(),
	}
}

// SetBus attaches an event bus for rebuild notifications.
func (b *Builder) SetBus(bus *events.Bus) {
	b.bus = bus
}

// BuildDaily computes and stores the schedule for a meta station on the
// given calendar date. Rebuilding the same (station, date) fully replaces
// the prior generation inside one transaction, so the operation is
// idempotent and concurrent readers never observe a half-cleared schedule.
func (b *Builder) BuildDaily(ctx context.Context, metaStationID string, date time.Time) ([]models.ScheduledTrack, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "schedule", "BuildDaily")
	defer span.End()

	var station models.Station
	if err := b.db.WithContext(ctx).First(&station, "id = ?", metaStationID).Error; err != nil {
		telemetry.ScheduleBuildErrorsTotal.WithLabelValues(metaStationID, "load_station").Inc()
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load station %s: %w", metaStationID, err)
	}
	if station.Kind != models.StationMeta {
		err := fmt.Errorf("station %s is not a meta station", metaStationID)
		telemetry.ScheduleBuildErrorsTotal.WithLabelValues(metaStationID, "kind").Inc()
		return nil, err
	}

	loc := time.UTC
	if station.Timezone != "" {
		if loaded, err := time.LoadLocation(station.Timezone); err == nil {
			loc = loaded
		} else {
			b.logger.Warn().Err(err).Str("station", station.ID).Str("timezone", station.Timezone).Msg("invalid station timezone, falling back to UTC")
		}
	}
	local := date.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	airDate := day.Format("2006-01-02")

	telemetry.AddSpanAttributes(span, map[string]any{
		"station_id": metaStationID,
		"air_date":   airDate,
	})

	var ranges []models.TimeRange
	err := b.db.WithContext(ctx).
		Where("station_id = ?", metaStationID).
		Order("position ASC").
		Find(&ranges).Error
	if err != nil {
		telemetry.ScheduleBuildErrorsTotal.WithLabelValues(metaStationID, "load_ranges").Inc()
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load time ranges for %s: %w", metaStationID, err)
	}

	rows := make([]models.ScheduledTrack, 0, 64)
	position := 0
	for _, r := range ranges {
		rangeRows, err := b.layoutRange(ctx, station, r, day, airDate, &position)
		if err != nil {
			telemetry.ScheduleBuildErrorsTotal.WithLabelValues(metaStationID, "layout").Inc()
			telemetry.RecordError(span, err)
			return nil, err
		}
		rows = append(rows, rangeRows...)
	}

	if err := b.replaceSchedule(ctx, metaStationID, airDate, rows); err != nil {
		telemetry.ScheduleBuildErrorsTotal.WithLabelValues(metaStationID, "replace").Inc()
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.ScheduleBuildDuration.WithLabelValues(metaStationID).Observe(time.Since(start).Seconds())
	telemetry.ScheduleRowsTotal.WithLabelValues(metaStationID).Add(float64(len(rows)))
	b.logger.Info().
		Str("station", metaStationID).
		Str("date", airDate).
		Int("rows", len(rows)).
		Int("ranges", len(ranges)).
		Msg("daily schedule built")

	if b.bus != nil {
		b.bus.Publish(events.EventScheduleRebuilt, events.Payload{
			"station_id": metaStationID,
			"air_date":   airDate,
			"rows":       len(rows),
		})
	}
	return rows, nil
}

// layoutRange greedily lays tracks along one time range. Near the boundary a
// track that would overshoot by more than the limit is swapped for the first
// remaining track that fits; the long track goes back to the front of the
// queue so it opens a future range instead of being discarded.
func (b *Builder) layoutRange(ctx context.Context, station models.Station, r models.TimeRange, day time.Time, airDate string, position *int) ([]models.ScheduledTrack, error) {
	var target models.Station
	if err := b.db.WithContext(ctx).First(&target, "id = ?", r.TargetStationID).Error; err != nil {
		return nil, fmt.Errorf("load target station %s for range %s: %w", r.TargetStationID, r.ID, err)
	}
	if target.Kind != models.StationLeaf {
		// The builder flattens one level: nested meta stations are a
		// configuration error here, unlike live resolution which recurses.
		return nil, fmt.Errorf("range %s targets meta station %s; schedules require leaf targets", r.ID, target.ID)
	}

	queue, err := b.content.Tracks(ctx, target, airDate)
	if err != nil {
		return nil, err
	}
	if len(queue) == 0 {
		b.logger.Warn().Str("range", r.ID).Str("target", target.ID).Msg("time range target has no content")
		return nil, nil
	}

	rangeStart := day.Add(time.Duration(r.StartMinute) * time.Minute)
	rangeEnd := day.Add(time.Duration(r.EndMinute) * time.Minute)
	if r.Wraps() {
		rangeEnd = rangeEnd.Add(24 * time.Hour)
	}

	rows := make([]models.ScheduledTrack, 0, len(queue))
	current := rangeStart
	for current.Before(rangeEnd) && len(queue) > 0 {
		track := queue[0]
		queue = queue[1:]

		end := current.Add(track.Duration())
		if overshoot := end.Sub(rangeEnd); overshoot > b.tunables.OvershootLimit {
			allowed := rangeEnd.Sub(current) + b.tunables.OvershootLimit
			if swapped, ok := takeFitting(queue, allowed); ok {
				queue = append([]models.Track{track}, swapped.rest...)
				track = swapped.track
				end = current.Add(track.Duration())
			}
			// No shorter track fits: accept the overshoot as-is.
		}

		if track.SourceType.Remote() {
			end = end.Add(b.tunables.RemotePad)
		}

		rows = append(rows, models.ScheduledTrack{
			ID:          uuid.NewString(),
			StationID:   station.ID,
			AirDate:     airDate,
			TrackID:     track.ID,
			SourceType:  track.SourceType,
			SourceURI:   track.SourceURI,
			StartsAt:    current,
			EndsAt:      end,
			Position:    *position,
			TimeRangeID: r.ID,
		})
		*position++
		current = end
	}
	return rows, nil
}

type fitting struct {
	track models.Track
	rest  []models.Track
}

// takeFitting removes and returns the first track whose duration fits within
// allowed, along with the remaining queue.
func takeFitting(queue []models.Track, allowed time.Duration) (fitting, bool) {
	for i, t := range queue {
		if t.Duration() <= allowed {
			rest := make([]models.Track, 0, len(queue)-1)
			rest = append(rest, queue[:i]...)
			rest = append(rest, queue[i+1:]...)
			return fitting{track: t, rest: rest}, true
		}
	}
	return fitting{}, false
}

// replaceSchedule atomically swaps the stored generation for (station, date).
func (b *Builder) replaceSchedule(ctx context.Context, stationID, airDate string, rows []models.ScheduledTrack) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("station_id = ? AND air_date = ?", stationID, airDate).
			Delete(&models.ScheduledTrack{}).Error
		if err != nil {
			return fmt.Errorf("clear prior schedule: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return fmt.Errorf("insert schedule rows: %w", err)
		}
		return nil
	})
}
