/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timeline computes which track a station is playing at any instant.
// Resolution is a pure computation over stored content: no playback state is
// held anywhere, so a restart loses nothing and any instant can be recomputed
// from scratch.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Andrewske/music-minion-radio/internal/content"
	"github.com/Andrewske/music-minion-radio/internal/models"
)

// DefaultMaxDepth bounds meta-station recursion. A chain deeper than this is
// a configuration fault (usually a cycle), not a schedule.
const DefaultMaxDepth = 8

// UpcomingCount is the length of the upcoming preview.
const UpcomingCount = 5

// ErrDepthExceeded reports a circular or over-deep meta-station chain.
var ErrDepthExceeded = errors.New("meta-station chain exceeds depth bound")

// Result is a resolved point on a station's timeline.
type Result struct {
	// Station is the leaf station whose content is playing.
	Station    models.Station
	Track      models.Track
	OffsetMS   int64
	Next       models.Track
	Upcoming   []models.Track
	RangeStart time.Time
	AirDate    string
}

// Calculator resolves stations against wall-clock time.
type Calculator struct {
	db       *gorm.DB
	content  *content.Resolver
	logger   zerolog.Logger
	maxDepth int
}

// NewCalculator constructs a timeline calculator. maxDepth <= 0 selects
// DefaultMaxDepth.
func NewCalculator(db *gorm.DB, resolver *content.Resolver, maxDepth int, logger zerolog.Logger) *Calculator {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Calculator{db: db, content: resolver, logger: logger, maxDepth: maxDepth}
}

// Resolve computes the track playing on stationID at the given instant. A
// nil result with nil error is the defined no-content outcome (empty or
// zero-duration content, or no time range active); callers must handle it.
// Configuration faults (unknown station, depth exceeded) return errors.
func (c *Calculator) Resolve(ctx context.Context, stationID string, at time.Time) (*Result, error) {
	return c.resolveAt(ctx, stationID, at, nil, 0)
}

func (c *Calculator) resolveAt(ctx context.Context, stationID string, at time.Time, rangeStart *time.Time, depth int) (*Result, error) {
	if depth > c.maxDepth {
		return nil, fmt.Errorf("%w: station %s at depth %d", ErrDepthExceeded, stationID, depth)
	}

	var station models.Station
	if err := c.db.WithContext(ctx).First(&station, "id = ?", stationID).Error; err != nil {
		return nil, fmt.Errorf("load station %s: %w", stationID, err)
	}

	loc := c.stationLocation(station)
	local := at.In(loc)

	if station.Kind == models.StationMeta {
		return c.resolveMeta(ctx, station, at, local, loc, depth)
	}
	return c.resolveLeaf(ctx, station, at, local, loc, rangeStart)
}

// resolveMeta finds the time range active at the instant and recurses into
// its target, passing down the wall-clock instant the range began.
func (c *Calculator) resolveMeta(ctx context.Context, station models.Station, at, local time.Time, loc *time.Location, depth int) (*Result, error) {
	var ranges []models.TimeRange
	err := c.db.WithContext(ctx).
		Where("station_id = ?", station.ID).
		Order("position ASC").
		Find(&ranges).Error
	if err != nil {
		return nil, fmt.Errorf("load time ranges for %s: %w", station.ID, err)
	}

	minute := local.Hour()*60 + local.Minute()
	for _, r := range ranges {
		if !r.Contains(minute) {
			continue
		}
		start := rangeStartInstant(local, r, loc)
		return c.resolveAt(ctx, r.TargetStationID, at, &start, depth+1)
	}

	c.logger.Debug().Str("station", station.ID).Int("minute", minute).Msg("no time range active")
	return nil, nil
}

func (c *Calculator) resolveLeaf(ctx context.Context, station models.Station, at, local time.Time, loc *time.Location, rangeStart *time.Time) (*Result, error) {
	airDate := local.Format("2006-01-02")

	tracks, err := c.content.Tracks(ctx, station, airDate)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, nil
	}

	var totalMS int64
	for _, t := range tracks {
		totalMS += t.DurationMS
	}
	if totalMS <= 0 {
		return nil, nil
	}

	start := midnightOf(local, loc)
	if rangeStart != nil {
		start = *rangeStart
	}

	elapsed := at.Sub(start).Milliseconds()
	position := ((elapsed % totalMS) + totalMS) % totalMS

	var accumulated int64
	idx := 0
	for i, t := range tracks {
		if position < accumulated+t.DurationMS {
			idx = i
			break
		}
		accumulated += t.DurationMS
	}

	upcoming := make([]models.Track, 0, UpcomingCount)
	for i := 1; i <= UpcomingCount && i < len(tracks)+1; i++ {
		upcoming = append(upcoming, tracks[(idx+i)%len(tracks)])
	}

	return &Result{
		Station:    station,
		Track:      tracks[idx],
		OffsetMS:   position - accumulated,
		Next:       tracks[(idx+1)%len(tracks)],
		Upcoming:   upcoming,
		RangeStart: start,
		AirDate:    airDate,
	}, nil
}

func (c *Calculator) stationLocation(station models.Station) *time.Location {
	if station.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(station.Timezone)
	if err != nil {
		c.logger.Warn().Err(err).Str("station", station.ID).Str("timezone", station.Timezone).Msg("invalid station timezone, falling back to UTC")
		return time.UTC
	}
	return loc
}

// rangeStartInstant returns the wall-clock instant at which the range began
// relative to the local instant. For a wrapped range queried in its
// after-midnight tail, the range began yesterday.
func rangeStartInstant(local time.Time, r models.TimeRange, loc *time.Location) time.Time {
	start := time.Date(local.Year(), local.Month(), local.Day(), r.StartMinute/60, r.StartMinute%60, 0, 0, loc)
	minute := local.Hour()*60 + local.Minute()
	if r.Wraps() && minute < r.EndMinute {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

func midnightOf(local time.Time, loc *time.Location) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
