/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Andrewske/music-minion-radio/internal/auth"
)

type apiKeyCreateRequest struct {
	Name          string `json:"name"`
	ExpiresInDays int    `json:"expires_in_days"`
}

type apiKeyView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Revoked    bool       `json:"revoked"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (a *API) handleAPIKeysList(w http.ResponseWriter, r *http.Request) {
	keys, err := auth.ListAPIKeys(a.db.WithContext(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "keys_list_failed")
		return
	}

	views := make([]apiKeyView, len(keys))
	for i, k := range keys {
		views[i] = apiKeyView{
			ID:         k.ID,
			Name:       k.Name,
			Revoked:    k.Revoked,
			ExpiresAt:  k.ExpiresAt,
			LastUsedAt: k.LastUsedAt,
			CreatedAt:  k.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) handleAPIKeysCreate(w http.ResponseWriter, r *http.Request) {
	var req apiKeyCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	var expiresIn time.Duration
	if req.ExpiresInDays > 0 {
		expiresIn = time.Duration(req.ExpiresInDays) * 24 * time.Hour
	}

	plaintext, key, err := auth.GenerateAPIKey(req.Name, expiresIn)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "key_generate_failed")
		return
	}
	if err := a.db.WithContext(r.Context()).Create(key).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "key_store_failed")
		return
	}

	// The plaintext key is returned exactly once.
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":   key.ID,
		"name": key.Name,
		"key":  plaintext,
	})
}

func (a *API) handleAPIKeyRevoke(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyID")
	err := auth.RevokeAPIKey(a.db.WithContext(r.Context()), keyID)
	if errors.Is(err, auth.ErrAPIKeyNotFound) {
		writeError(w, http.StatusNotFound, "key_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "key_revoke_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"revoked": keyID})
}

func (a *API) handleAPIKeyDelete(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyID")
	err := auth.DeleteAPIKey(a.db.WithContext(r.Context()), keyID)
	if errors.Is(err, auth.ErrAPIKeyNotFound) {
		writeError(w, http.StatusNotFound, "key_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "key_delete_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": keyID})
}
