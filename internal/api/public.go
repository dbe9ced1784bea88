/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Andrewske/music-minion-radio/internal/events"
	"github.com/Andrewske/music-minion-radio/internal/models"
)

// nowResponse is the minimal payload a player client needs to join the
// timeline mid-track.
type nowResponse struct {
	TrackID    string `json:"track_id"`
	URI        string `json:"uri"`
	SeekMS     int64  `json:"seek_ms"`
	DurationMS int64  `json:"duration_ms"`
	SourceType string `json:"source_type"`
	Emergency  bool   `json:"emergency,omitempty"`
}

func (a *API) handlePublicStations(w http.ResponseWriter, r *http.Request) {
	stations, err := a.cachedStationList(r)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to list public stations")
		writeError(w, http.StatusInternalServerError, "stations_list_failed")
		return
	}
	writeJSON(w, http.StatusOK, stations)
}

// handlePublicNow answers "what should be playing right now". Pre-built
// schedules are served by indexed lookup; stations without one fall back to
// live resolution with availability checks.
func (a *API) handlePublicNow(w http.ResponseWriter, r *http.Request) {
	station, ok := a.requestedStation(w, r)
	if !ok {
		return
	}
	at := time.Now()

	row, err := a.lookup.NowPlaying(r.Context(), station.ID, at)
	if err != nil {
		a.logger.Error().Err(err).Str("station", station.ID).Msg("now playing lookup failed")
		writeError(w, http.StatusInternalServerError, "now_playing_failed")
		return
	}
	if row != nil {
		var track models.Track
		durationMS := int64(row.EndsAt.Sub(row.StartsAt) / time.Millisecond)
		if err := a.db.WithContext(r.Context()).First(&track, "id = ?", row.TrackID).Error; err == nil {
			durationMS = track.DurationMS
		} else {
			track.ID = row.TrackID
		}
		a.recordScheduledPlay(r, station.ID, row, track, int64(at.Sub(row.StartsAt)/time.Millisecond))
		writeJSON(w, http.StatusOK, nowResponse{
			TrackID:    row.TrackID,
			URI:        row.SourceURI,
			SeekMS:     int64(at.Sub(row.StartsAt) / time.Millisecond),
			DurationMS: durationMS,
			SourceType: string(row.SourceType),
		})
		return
	}

	res, err := a.resolver.Resolve(r.Context(), station.ID, at)
	if err != nil {
		a.logger.Error().Err(err).Str("station", station.ID).Msg("live resolve failed")
		writeError(w, http.StatusInternalServerError, "resolve_failed")
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "no_content")
		return
	}

	a.recordPlay(r, res.Station.ID, res.Track, res.OffsetMS, res.Emergency)
	writeJSON(w, http.StatusOK, nowResponse{
		TrackID:    res.Track.ID,
		URI:        res.Track.SourceURI,
		SeekMS:     res.OffsetMS,
		DurationMS: res.Track.DurationMS,
		SourceType: string(res.Track.SourceType),
		Emergency:  res.Emergency,
	})
}

// handlePublicNext previews the track after the current one so clients can
// pre-buffer.
func (a *API) handlePublicNext(w http.ResponseWriter, r *http.Request) {
	station, ok := a.requestedStation(w, r)
	if !ok {
		return
	}
	at := time.Now()

	rows, err := a.lookup.Upcoming(r.Context(), station.ID, at, 24*time.Hour)
	if err == nil && len(rows) > 0 {
		next := rows[0]
		writeJSON(w, http.StatusOK, nowResponse{
			TrackID:    next.TrackID,
			URI:        next.SourceURI,
			SeekMS:     0,
			DurationMS: int64(next.EndsAt.Sub(next.StartsAt) / time.Millisecond),
			SourceType: string(next.SourceType),
		})
		return
	}

	res, err := a.resolver.Resolve(r.Context(), station.ID, at)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "resolve_failed")
		return
	}
	if res == nil || res.Next.ID == "" {
		writeError(w, http.StatusNotFound, "no_content")
		return
	}
	writeJSON(w, http.StatusOK, nowResponse{
		TrackID:    res.Next.ID,
		URI:        res.Next.SourceURI,
		SeekMS:     0,
		DurationMS: res.Next.DurationMS,
		SourceType: string(res.Next.SourceType),
	})
}

// handlePublicSchedule returns the stored schedule rows for a station and
// date (defaults to today) so clients can render a program guide.
func (a *API) handlePublicSchedule(w http.ResponseWriter, r *http.Request) {
	station, ok := a.requestedStation(w, r)
	if !ok {
		return
	}
	airDate := r.URL.Query().Get("date")
	if airDate == "" {
		airDate = time.Now().Format("2006-01-02")
	}

	rows, err := a.lookup.Rows(r.Context(), station.ID, airDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "schedule_rows_failed")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// requestedStation loads the station named by station_id, or the single
// active station when the parameter is absent.
func (a *API) requestedStation(w http.ResponseWriter, r *http.Request) (models.Station, bool) {
	var station models.Station
	var err error
	if stationID := r.URL.Query().Get("station_id"); stationID != "" {
		err = a.db.WithContext(r.Context()).First(&station, "id = ?", stationID).Error
	} else {
		err = a.db.WithContext(r.Context()).First(&station, "active = ?", true).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "station_not_found")
		return models.Station{}, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "station_get_failed")
		return models.Station{}, false
	}
	return station, true
}

// recordScheduledPlay records history and publishes the now-playing event
// for a schedule-served answer. The endpoint is polled, so dedupe to one
// history row per scheduled row: skip when the station's latest entry
// already covers this track since it started.
func (a *API) recordScheduledPlay(r *http.Request, stationID string, row *models.ScheduledTrack, track models.Track, offsetMS int64) {
	var last models.PlayHistory
	err := a.db.WithContext(r.Context()).
		Where("station_id = ?", stationID).
		Order("started_at DESC").
		First(&last).Error
	if err == nil && last.TrackID == row.TrackID && !last.StartedAt.Before(row.StartsAt) {
		return
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		a.logger.Debug().Err(err).Msg("failed to read play history")
		return
	}
	a.recordPlay(r, stationID, track, offsetMS, false)
}

func (a *API) recordPlay(r *http.Request, stationID string, track models.Track, offsetMS int64, emergency bool) {
	history := models.PlayHistory{
		ID:        uuid.NewString(),
		StationID: stationID,
		TrackID:   track.ID,
		Title:     track.Title,
		Artist:    track.Artist,
		StartedAt: time.Now(),
		OffsetMS:  offsetMS,
		Emergency: emergency,
	}
	if err := a.db.WithContext(r.Context()).Create(&history).Error; err != nil {
		a.logger.Debug().Err(err).Msg("failed to record play history")
	}
	a.bus.Publish(events.EventNowPlaying, events.Payload{
		"station_id": stationID,
		"track_id":   track.ID,
		"offset_ms":  offsetMS,
		"emergency":  emergency,
	})
}
