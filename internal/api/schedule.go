/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Andrewske/music-minion-radio/internal/models"
)

type scheduleBuildRequest struct {
	StationID string `json:"station_id"`
	Date      string `json:"date"`
}

type skipsResetRequest struct {
	StationID string `json:"station_id"`
	Date      string `json:"date"`
}

func (a *API) handleScheduleRows(w http.ResponseWriter, r *http.Request) {
	stationID := r.URL.Query().Get("station_id")
	if stationID == "" {
		writeError(w, http.StatusBadRequest, "station_id_required")
		return
	}
	airDate := r.URL.Query().Get("date")
	if airDate == "" {
		airDate = time.Now().Format("2006-01-02")
	}

	rows, err := a.lookup.Rows(r.Context(), stationID, airDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "schedule_rows_failed")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) handleScheduleBuild(w http.ResponseWriter, r *http.Request) {
	var req scheduleBuildRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.StationID == "" {
		writeError(w, http.StatusBadRequest, "station_id_required")
		return
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date")
			return
		}
		date = parsed
	}

	rows, err := a.builder.BuildDaily(r.Context(), req.StationID, date)
	if err != nil {
		a.logger.Error().Err(err).Str("station", req.StationID).Msg("schedule build failed")
		writeError(w, http.StatusInternalServerError, "schedule_build_failed")
		return
	}

	if a.cache != nil {
		a.cache.InvalidateNowPlaying(r.Context(), req.StationID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"station_id": req.StationID,
		"date":       date.Format("2006-01-02"),
		"rows":       len(rows),
	})
}

func (a *API) handleSkipsList(w http.ResponseWriter, r *http.Request) {
	q := a.db.WithContext(r.Context()).Order("created_at DESC")
	if stationID := r.URL.Query().Get("station_id"); stationID != "" {
		q = q.Where("station_id = ?", stationID)
	}
	if airDate := r.URL.Query().Get("date"); airDate != "" {
		q = q.Where("air_date = ?", airDate)
	}

	var skips []models.SkipRecord
	if err := q.Find(&skips).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "skips_list_failed")
		return
	}
	writeJSON(w, http.StatusOK, skips)
}

func (a *API) handleSkipDelete(w http.ResponseWriter, r *http.Request) {
	skipID := chi.URLParam(r, "skipID")

	var skip models.SkipRecord
	if err := a.db.WithContext(r.Context()).First(&skip, "id = ?", skipID).Error; err != nil {
		writeError(w, http.StatusNotFound, "skip_not_found")
		return
	}

	if err := a.resolver.Unskip(r.Context(), skip.StationID, skip.TrackID, skip.AirDate); err != nil {
		writeError(w, http.StatusInternalServerError, "unskip_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": skipID})
}

func (a *API) handleSkipsReset(w http.ResponseWriter, r *http.Request) {
	var req skipsResetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	airDate := req.Date
	if airDate == "" {
		airDate = time.Now().Format("2006-01-02")
	}

	removed, err := a.resolver.ResetSkips(r.Context(), req.StationID, airDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "skips_reset_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed, "date": airDate})
}
