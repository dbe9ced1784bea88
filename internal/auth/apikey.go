/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Andrewske/music-minion-radio/internal/models"
)

// API key constants
const (
	APIKeyPrefix      = "mm_"
	APIKeyRandomBytes = 24
)

// ErrAPIKeyNotFound is returned when an API key doesn't exist.
var ErrAPIKeyNotFound = errors.New("api key not found")

// ErrAPIKeyExpired is returned when an API key has expired.
var ErrAPIKeyExpired = errors.New("api key expired")

// ErrAPIKeyRevoked is returned when an API key has been revoked.
var ErrAPIKeyRevoked = errors.New("api key revoked")

// GenerateAPIKey creates a named API key. Returns the plaintext key, shown
// to the caller exactly once, and the model to store. A zero expiresIn means
// the key never expires.
func GenerateAPIKey(name string, expiresIn time.Duration) (string, *models.APIKey, error) {
	randomBytes := make([]byte, APIKeyRandomBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", nil, err
	}

	plaintextKey := APIKeyPrefix + hex.EncodeToString(randomBytes)

	hash := sha256.Sum256([]byte(plaintextKey))
	apiKey := &models.APIKey{
		ID:      uuid.NewString(),
		Name:    name,
		KeyHash: hex.EncodeToString(hash[:]),
	}
	if expiresIn > 0 {
		expires := time.Now().Add(expiresIn)
		apiKey.ExpiresAt = &expires
	}

	return plaintextKey, apiKey, nil
}

// ValidateAPIKey checks a plaintext key against storage and returns claims
// for it. Updates LastUsedAt asynchronously on success.
func ValidateAPIKey(db *gorm.DB, plaintextKey string) (*Claims, error) {
	hash := sha256.Sum256([]byte(plaintextKey))
	keyHash := hex.EncodeToString(hash[:])

	var apiKey models.APIKey
	result := db.Where("key_hash = ?", keyHash).First(&apiKey)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrAPIKeyNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	if apiKey.Revoked {
		return nil, ErrAPIKeyRevoked
	}
	if apiKey.ExpiresAt != nil && time.Now().After(*apiKey.ExpiresAt) {
		return nil, ErrAPIKeyExpired
	}

	now := time.Now()
	go db.Model(&apiKey).Update("last_used_at", now)

	return &Claims{KeyID: apiKey.ID, KeyName: apiKey.Name}, nil
}

// RevokeAPIKey marks a key revoked without deleting it.
func RevokeAPIKey(db *gorm.DB, keyID string) error {
	result := db.Model(&models.APIKey{}).
		Where("id = ?", keyID).
		Update("revoked", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// ListAPIKeys returns all stored keys, newest first. Hashes stay internal to
// the auth package; callers should not echo them.
func ListAPIKeys(db *gorm.DB) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := db.Order("created_at DESC").Find(&keys).Error
	return keys, err
}

// DeleteAPIKey permanently deletes a key. Use RevokeAPIKey for soft delete.
func DeleteAPIKey(db *gorm.DB, keyID string) error {
	result := db.Where("id = ?", keyID).Delete(&models.APIKey{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}
