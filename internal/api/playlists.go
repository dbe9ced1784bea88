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
	"gorm.io/gorm/clause"

	"github.com/Andrewske/music-minion-radio/internal/models"
)

type playlistRequest struct {
	Name string `json:"name"`
}

type playlistItemRequest struct {
	TrackID  string `json:"track_id"`
	Position *int   `json:"position"`
}

type trackRequest struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	DurationMS int64  `json:"duration_ms"`
	SourceType string `json:"source_type"`
	SourceURI  string `json:"source_uri"`
}

type playlistResponse struct {
	models.Playlist
	Tracks []models.Track `json:"tracks"`
}

func (a *API) handlePlaylistsList(w http.ResponseWriter, r *http.Request) {
	var playlists []models.Playlist
	if err := a.db.WithContext(r.Context()).Order("name ASC").Find(&playlists).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "playlists_list_failed")
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (a *API) handlePlaylistsCreate(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	playlist := models.Playlist{ID: uuid.NewString(), Name: req.Name}
	if err := a.db.WithContext(r.Context()).Create(&playlist).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "playlist_create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, playlist)
}

func (a *API) handlePlaylistsGet(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistID")

	var playlist models.Playlist
	err := a.db.WithContext(r.Context()).First(&playlist, "id = ?", playlistID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "playlist_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "playlist_get_failed")
		return
	}

	var tracks []models.Track
	err = a.db.WithContext(r.Context()).
		Joins("JOIN playlist_items ON playlist_items.track_id = tracks.id").
		Where("playlist_items.playlist_id = ?", playlistID).
		Order("playlist_items.position ASC").
		Find(&tracks).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "playlist_tracks_failed")
		return
	}

	writeJSON(w, http.StatusOK, playlistResponse{Playlist: playlist, Tracks: tracks})
}

func (a *API) handlePlaylistItemsAdd(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistID")

	var req playlistItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "track_id_required")
		return
	}

	position := 0
	if req.Position != nil {
		position = *req.Position
	} else {
		// Append to the end.
		var max struct{ Max int }
		a.db.WithContext(r.Context()).
			Model(&models.PlaylistItem{}).
			Select("COALESCE(MAX(position), -1) AS max").
			Where("playlist_id = ?", playlistID).
			Scan(&max)
		position = max.Max + 1
	}

	item := models.PlaylistItem{PlaylistID: playlistID, TrackID: req.TrackID, Position: position}
	err := a.db.WithContext(r.Context()).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&item).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "playlist_item_add_failed")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) handlePlaylistItemsRemove(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistID")
	trackID := chi.URLParam(r, "trackID")

	result := a.db.WithContext(r.Context()).
		Where("playlist_id = ? AND track_id = ?", playlistID, trackID).
		Delete(&models.PlaylistItem{})
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "playlist_item_remove_failed")
		return
	}
	if result.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "playlist_item_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": trackID})
}

func (a *API) handleTracksList(w http.ResponseWriter, r *http.Request) {
	var tracks []models.Track
	q := a.db.WithContext(r.Context()).Order("title ASC")
	if source := r.URL.Query().Get("source_type"); source != "" {
		q = q.Where("source_type = ?", source)
	}
	if err := q.Find(&tracks).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "tracks_list_failed")
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (a *API) handleTracksCreate(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.SourceURI == "" {
		writeError(w, http.StatusBadRequest, "source_uri_required")
		return
	}
	if req.DurationMS <= 0 {
		writeError(w, http.StatusBadRequest, "duration_required")
		return
	}
	source := models.SourceType(req.SourceType)
	switch source {
	case models.SourceLocal, models.SourceYouTube, models.SourceSoundCloud, models.SourceSpotify:
	default:
		writeError(w, http.StatusBadRequest, "invalid_source_type")
		return
	}

	track := models.Track{
		ID:         uuid.NewString(),
		Title:      req.Title,
		Artist:     req.Artist,
		DurationMS: req.DurationMS,
		SourceType: source,
		SourceURI:  req.SourceURI,
	}
	if err := a.db.WithContext(r.Context()).Create(&track).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "track_create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, track)
}
