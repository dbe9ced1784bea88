/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package fallback wraps timeline resolution with availability checks, skip
// persistence and the emergency track safety net. Callers never see a
// "track unavailable" error: they get a playable track or a defined
// no-content result.
package fallback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Andrewske/music-minion-radio/internal/events"
	"github.com/Andrewske/music-minion-radio/internal/models"
	"github.com/Andrewske/music-minion-radio/internal/telemetry"
	"github.com/Andrewske/music-minion-radio/internal/timeline"
)

// DefaultMaxRemoteChecks bounds network availability probes per resolution so
// a run of dead remote tracks cannot cascade into a probe storm.
const DefaultMaxRemoteChecks = 3

// maxAttempts is a hard stop on the skip-and-retry loop. Every failed
// attempt persists a skip record that shrinks the next resolution's content
// list, so the loop terminates anyway; this guards against a misbehaving
// checker that fails tracks faster than they can be skipped.
const maxAttempts = 25

// Checker reports whether a track's source is playable right now. Local
// implementations should be cheap; remote ones must carry their own timeout.
type Checker interface {
	IsAvailable(ctx context.Context, track models.Track) (bool, error)
}

// Resolution is a fallback-resolved timeline point. Emergency marks the
// designated always-available track substituted after degraded resolution.
type Resolution struct {
	*timeline.Result
	Emergency bool
}

// Resolver wraps the timeline calculator with availability policy.
type Resolver struct {
	db              *gorm.DB
	calc            *timeline.Calculator
	checker         Checker
	logger          zerolog.Logger
	bus             *events.Bus
	maxRemoteChecks int
	emergency       models.Track
}

// NewResolver constructs a fallback resolver. maxRemoteChecks <= 0 selects
// DefaultMaxRemoteChecks. emergency must reference a known-good local file.
func NewResolver(db *gorm.DB, calc *timeline.Calculator, checker Checker, emergency models.Track, maxRemoteChecks int, logger zerolog.Logger) *Resolver {
	if maxRemoteChecks <= 0 {
		maxRemoteChecks = DefaultMaxRemoteChecks
	}
	return &Resolver{
		db:              db,
		calc:            calc,
		checker:         checker,
		logger:          logger,
		maxRemoteChecks: maxRemoteChecks,
		emergency:       emergency,
	}
}

// SetBus attaches an event bus for skip notifications.
func (r *Resolver) SetBus(bus *events.Bus) {
	r.bus = bus
}

// Resolve returns the track playing on stationID at the given instant,
// skipping unavailable tracks at the source. Unavailable tracks are
// persisted as skip records so they vanish from every recomputation for the
// rest of the day. Remote availability probes are bounded per call; on
// exceeding the bound, or when skips exhaust the content, the emergency
// track is returned instead of an error. A nil Resolution with nil error is
// the no-content outcome for stations that never had playable content.
func (r *Resolver) Resolve(ctx context.Context, stationID string, at time.Time) (*Resolution, error) {
	start := time.Now()
	defer func() {
		telemetry.ResolveDuration.WithLabelValues(stationID).Observe(time.Since(start).Seconds())
	}()

	remoteChecks := 0
	for attempt := 0; attempt < maxAttempts; attempt++ {
		res, err := r.calc.Resolve(ctx, stationID, at)
		if err != nil {
			telemetry.TimelineResolutionsTotal.WithLabelValues(stationID, "error").Inc()
			return nil, err
		}
		if res == nil {
			if attempt == 0 {
				telemetry.TimelineResolutionsTotal.WithLabelValues(stationID, "no_content").Inc()
				return nil, nil
			}
			// Skips exhausted the content mid-resolution.
			return r.emergencyResolution(stationID, "content exhausted"), nil
		}

		if res.Track.SourceType.Remote() {
			if remoteChecks >= r.maxRemoteChecks {
				return r.emergencyResolution(stationID, "remote check budget exceeded"), nil
			}
			remoteChecks++
		}

		available, err := r.checker.IsAvailable(ctx, res.Track)
		result := "ok"
		if err != nil || !available {
			result = "unavailable"
		}
		telemetry.AvailabilityChecksTotal.WithLabelValues(string(res.Track.SourceType), result).Inc()

		if err == nil && available {
			telemetry.TimelineResolutionsTotal.WithLabelValues(stationID, "ok").Inc()
			return &Resolution{Result: res}, nil
		}

		reason := "unavailable"
		if err != nil {
			reason = "check failed"
			r.logger.Warn().Err(err).Str("track", res.Track.ID).Msg("availability check failed")
		}
		if skipErr := r.recordSkip(ctx, res.Station.ID, res.Track.ID, res.AirDate, reason); skipErr != nil {
			return nil, fmt.Errorf("record skip for track %s: %w", res.Track.ID, skipErr)
		}
	}

	return r.emergencyResolution(stationID, "attempt budget exceeded"), nil
}

// recordSkip upserts a skip record. The unique (station, track, date) index
// makes concurrent attempts idempotent.
func (r *Resolver) recordSkip(ctx context.Context, stationID, trackID, airDate, reason string) error {
	record := models.SkipRecord{
		ID:        uuid.NewString(),
		StationID: stationID,
		TrackID:   trackID,
		AirDate:   airDate,
		Reason:    reason,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "station_id"}, {Name: "track_id"}, {Name: "air_date"}},
			DoNothing: true,
		}).
		Create(&record).Error
	if err != nil {
		return err
	}

	telemetry.TrackSkipsTotal.WithLabelValues(stationID).Inc()
	r.logger.Info().
		Str("station", stationID).
		Str("track", trackID).
		Str("date", airDate).
		Str("reason", reason).
		Msg("track skipped")

	if r.bus != nil {
		r.bus.Publish(events.EventTrackSkipped, events.Payload{
			"station_id": stationID,
			"track_id":   trackID,
			"air_date":   airDate,
			"reason":     reason,
		})
	}
	return nil
}

func (r *Resolver) emergencyResolution(stationID, cause string) *Resolution {
	telemetry.EmergencyFallbacksTotal.WithLabelValues(stationID).Inc()
	r.logger.Warn().
		Str("station", stationID).
		Str("cause", cause).
		Str("track", r.emergency.ID).
		Msg("using emergency fallback track to prevent dead air")

	return &Resolution{
		Result: &timeline.Result{
			Track:    r.emergency,
			Next:     r.emergency,
			OffsetMS: 0,
		},
		Emergency: true,
	}
}

// Unskip removes a single skip record so the track re-enters resolution.
func (r *Resolver) Unskip(ctx context.Context, stationID, trackID, airDate string) error {
	err := r.db.WithContext(ctx).
		Where("station_id = ? AND track_id = ? AND air_date = ?", stationID, trackID, airDate).
		Delete(&models.SkipRecord{}).Error
	if err != nil {
		return err
	}
	if r.bus != nil {
		r.bus.Publish(events.EventTrackUnskipped, events.Payload{
			"station_id": stationID,
			"track_id":   trackID,
			"air_date":   airDate,
		})
	}
	return nil
}

// ResetSkips deletes skip records for an air date, optionally scoped to one
// station. Used by the daily reset.
func (r *Resolver) ResetSkips(ctx context.Context, stationID, airDate string) (int64, error) {
	query := r.db.WithContext(ctx).Where("air_date = ?", airDate)
	if stationID != "" {
		query = query.Where("station_id = ?", stationID)
	}
	result := query.Delete(&models.SkipRecord{})
	return result.RowsAffected, result.Error
}
