/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/Andrewske/music-minion-radio/internal/models"
	"github.com/Andrewske/music-minion-radio/internal/timeline"
)

type trackView struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	SourceType string `json:"source_type"`
	SourceURI  string `json:"source_uri"`
}

type resolveResponse struct {
	StationID  string      `json:"station_id"`
	Track      trackView   `json:"track"`
	OffsetMS   int64       `json:"offset_ms"`
	Next       *trackView  `json:"next,omitempty"`
	Upcoming   []trackView `json:"upcoming,omitempty"`
	RangeStart time.Time   `json:"range_start"`
	AirDate    string      `json:"air_date"`
	Emergency  bool        `json:"emergency"`
}

func viewOf(t models.Track) trackView {
	return trackView{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		DurationMS: t.DurationMS,
		SourceType: string(t.SourceType),
		SourceURI:  t.SourceURI,
	}
}

// handleResolve runs a full availability-checked resolution for a station at
// an instant. Intended for debugging and the admin UI; player clients use
// the public endpoints.
func (a *API) handleResolve(w http.ResponseWriter, r *http.Request) {
	stationID := r.URL.Query().Get("station_id")
	if stationID == "" {
		writeError(w, http.StatusBadRequest, "station_id_required")
		return
	}

	at := time.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_at")
			return
		}
		at = parsed
	}

	res, err := a.resolver.Resolve(r.Context(), stationID, at)
	if errors.Is(err, timeline.ErrDepthExceeded) {
		writeError(w, http.StatusUnprocessableEntity, "station_depth_exceeded")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("station", stationID).Msg("resolve failed")
		writeError(w, http.StatusInternalServerError, "resolve_failed")
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "no_content")
		return
	}

	resp := resolveResponse{
		StationID:  res.Station.ID,
		Track:      viewOf(res.Track),
		OffsetMS:   res.OffsetMS,
		RangeStart: res.RangeStart,
		AirDate:    res.AirDate,
		Emergency:  res.Emergency,
	}
	if res.Next.ID != "" {
		next := viewOf(res.Next)
		resp.Next = &next
	}
	for _, t := range res.Upcoming {
		resp.Upcoming = append(resp.Upcoming, viewOf(t))
	}
	writeJSON(w, http.StatusOK, resp)
}
