/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Andrewske/music-minion-radio/internal/cache"
	"github.com/Andrewske/music-minion-radio/internal/events"
	"github.com/Andrewske/music-minion-radio/internal/models"
)

type stationRequest struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Mode       string `json:"mode"`
	PlaylistID string `json:"playlist_id"`
	Timezone   string `json:"timezone"`
}

type timeRangeRequest struct {
	TargetStationID string `json:"target_station_id"`
	StartMinute     int    `json:"start_minute"`
	EndMinute       int    `json:"end_minute"`
	Position        int    `json:"position"`
}

func (a *API) handleStationsList(w http.ResponseWriter, r *http.Request) {
	var stations []models.Station
	if err := a.db.WithContext(r.Context()).Order("name ASC").Find(&stations).Error; err != nil {
		a.logger.Error().Err(err).Msg("failed to list stations")
		writeError(w, http.StatusInternalServerError, "stations_list_failed")
		return
	}
	writeJSON(w, http.StatusOK, stations)
}

func (a *API) handleStationsCreate(w http.ResponseWriter, r *http.Request) {
	var req stationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	kind := models.StationKind(req.Kind)
	if kind != models.StationLeaf && kind != models.StationMeta {
		writeError(w, http.StatusBadRequest, "invalid_kind")
		return
	}
	mode := models.StationMode(req.Mode)
	if mode == "" {
		mode = models.ModeShuffle
	}
	if mode != models.ModeShuffle && mode != models.ModeQueue {
		writeError(w, http.StatusBadRequest, "invalid_mode")
		return
	}
	if kind == models.StationLeaf && req.PlaylistID == "" {
		writeError(w, http.StatusBadRequest, "playlist_required_for_leaf")
		return
	}

	station := models.Station{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Kind:       kind,
		Mode:       mode,
		PlaylistID: req.PlaylistID,
		Timezone:   req.Timezone,
	}
	if err := a.db.WithContext(r.Context()).Create(&station).Error; err != nil {
		a.logger.Error().Err(err).Msg("failed to create station")
		writeError(w, http.StatusInternalServerError, "station_create_failed")
		return
	}

	a.invalidateStations(r)
	writeJSON(w, http.StatusCreated, station)
}

func (a *API) handleStationsGet(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")
	var station models.Station
	err := a.db.WithContext(r.Context()).First(&station, "id = ?", stationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "station_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "station_get_failed")
		return
	}
	writeJSON(w, http.StatusOK, station)
}

func (a *API) handleStationsUpdate(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")
	var station models.Station
	err := a.db.WithContext(r.Context()).First(&station, "id = ?", stationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "station_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "station_get_failed")
		return
	}

	var req stationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name != "" {
		station.Name = req.Name
	}
	if req.Mode != "" {
		mode := models.StationMode(req.Mode)
		if mode != models.ModeShuffle && mode != models.ModeQueue {
			writeError(w, http.StatusBadRequest, "invalid_mode")
			return
		}
		station.Mode = mode
	}
	if req.PlaylistID != "" {
		station.PlaylistID = req.PlaylistID
	}
	if req.Timezone != "" {
		station.Timezone = req.Timezone
	}

	if err := a.db.WithContext(r.Context()).Save(&station).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "station_update_failed")
		return
	}

	a.invalidateStations(r)
	a.bus.Publish(events.EventStationUpdated, events.Payload{"station_id": station.ID})
	writeJSON(w, http.StatusOK, station)
}

func (a *API) handleStationsDelete(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")
	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("station_id = ?", stationID).Delete(&models.TimeRange{}).Error; err != nil {
			return err
		}
		if err := tx.Where("station_id = ?", stationID).Delete(&models.ScheduledTrack{}).Error; err != nil {
			return err
		}
		if err := tx.Where("station_id = ?", stationID).Delete(&models.SkipRecord{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Station{}, "id = ?", stationID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "station_not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("station", stationID).Msg("failed to delete station")
		writeError(w, http.StatusInternalServerError, "station_delete_failed")
		return
	}

	a.invalidateStations(r)
	if a.cache != nil {
		a.cache.InvalidateNowPlaying(r.Context(), stationID)
	}
	a.bus.Publish(events.EventStationDeleted, events.Payload{"station_id": stationID})
	writeJSON(w, http.StatusOK, map[string]string{"deleted": stationID})
}

// handleStationActivate makes the station the single active one. The
// previous active station is deactivated in the same transaction so readers
// never see zero or two active stations.
func (a *API) handleStationActivate(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")
	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var station models.Station
		if err := tx.First(&station, "id = ?", stationID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Station{}).Where("active = ?", true).Update("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.Station{}).Where("id = ?", stationID).Update("active", true).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "station_not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("station", stationID).Msg("failed to activate station")
		writeError(w, http.StatusInternalServerError, "station_activate_failed")
		return
	}

	a.invalidateStations(r)
	a.bus.Publish(events.EventStationActivated, events.Payload{"station_id": stationID})
	writeJSON(w, http.StatusOK, map[string]string{"active": stationID})
}

func (a *API) handleTimeRangesList(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")
	var ranges []models.TimeRange
	err := a.db.WithContext(r.Context()).
		Where("station_id = ?", stationID).
		Order("position ASC").
		Find(&ranges).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "time_ranges_list_failed")
		return
	}
	writeJSON(w, http.StatusOK, ranges)
}

func (a *API) handleTimeRangesCreate(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")

	var station models.Station
	err := a.db.WithContext(r.Context()).First(&station, "id = ?", stationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "station_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "station_get_failed")
		return
	}
	if station.Kind != models.StationMeta {
		writeError(w, http.StatusBadRequest, "time_ranges_require_meta_station")
		return
	}

	var req timeRangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.TargetStationID == "" {
		writeError(w, http.StatusBadRequest, "target_station_required")
		return
	}
	if req.StartMinute < 0 || req.StartMinute > 1439 || req.EndMinute < 0 || req.EndMinute > 1440 {
		writeError(w, http.StatusBadRequest, "invalid_minutes")
		return
	}
	if req.StartMinute == req.EndMinute {
		writeError(w, http.StatusBadRequest, "empty_range")
		return
	}

	tr := models.TimeRange{
		ID:              uuid.NewString(),
		StationID:       stationID,
		TargetStationID: req.TargetStationID,
		StartMinute:     req.StartMinute,
		EndMinute:       req.EndMinute,
		Position:        req.Position,
	}
	if err := a.db.WithContext(r.Context()).Create(&tr).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "time_range_create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, tr)
}

func (a *API) handleTimeRangesDelete(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")
	rangeID := chi.URLParam(r, "rangeID")
	result := a.db.WithContext(r.Context()).
		Where("id = ? AND station_id = ?", rangeID, stationID).
		Delete(&models.TimeRange{})
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "time_range_delete_failed")
		return
	}
	if result.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "time_range_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": rangeID})
}

func (a *API) invalidateStations(r *http.Request) {
	if a.cache != nil {
		a.cache.InvalidateStationList(r.Context())
	}
}

// cachedStationList serves the public station list through the cache when
// one is attached.
func (a *API) cachedStationList(r *http.Request) ([]cache.CachedStation, error) {
	if a.cache != nil {
		if stations, ok := a.cache.GetStationList(r.Context()); ok {
			return stations, nil
		}
	}

	var stations []models.Station
	if err := a.db.WithContext(r.Context()).Order("name ASC").Find(&stations).Error; err != nil {
		return nil, err
	}
	cached := make([]cache.CachedStation, len(stations))
	for i, s := range stations {
		cached[i] = cache.CachedStation{
			ID:     s.ID,
			Name:   s.Name,
			Kind:   s.Kind,
			Mode:   s.Mode,
			Active: s.Active,
		}
	}
	if a.cache != nil {
		_ = a.cache.SetStationList(r.Context(), cached)
	}
	return cached, nil
}
