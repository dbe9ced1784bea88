/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package content resolves the playable track list for a leaf station.
package content

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Andrewske/music-minion-radio/internal/models"
	"github.com/Andrewske/music-minion-radio/internal/shuffle"
)

// Resolver loads station content with skip records excluded and the station
// mode applied.
type Resolver struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewResolver constructs a content resolver.
func NewResolver(db *gorm.DB, logger zerolog.Logger) *Resolver {
	return &Resolver{db: db, logger: logger}
}

// Tracks returns the ordered content for a leaf station on the given air
// date (2006-01-02). Queue mode preserves playlist position order; shuffle
// mode applies the deterministic permutation seeded by (station, date).
// Tracks skipped for (station, date) are excluded before ordering, so the
// modular position arithmetic downstream never lands on a known-bad track.
func (r *Resolver) Tracks(ctx context.Context, station models.Station, airDate string) ([]models.Track, error) {
	if station.Kind != models.StationLeaf {
		return nil, fmt.Errorf("station %s is not a leaf station", station.ID)
	}

	tracks, err := r.playlistTracks(ctx, station.PlaylistID)
	if err != nil {
		return nil, err
	}

	skipped, err := r.skippedIDs(ctx, station.ID, airDate)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		kept := tracks[:0]
		for _, t := range tracks {
			if _, ok := skipped[t.ID]; !ok {
				kept = append(kept, t)
			}
		}
		tracks = kept
	}

	if station.Mode == models.ModeShuffle {
		tracks = shuffle.Deterministic(tracks, shuffle.SeedKey(station.ID, airDate))
	}
	return tracks, nil
}

func (r *Resolver) playlistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if playlistID == "" {
		return nil, nil
	}

	var tracks []models.Track
	err := r.db.WithContext(ctx).
		Joins("JOIN playlist_items ON playlist_items.track_id = tracks.id").
		Where("playlist_items.playlist_id = ?", playlistID).
		Order("playlist_items.position ASC").
		Find(&tracks).Error
	if err != nil {
		return nil, err
	}
	return tracks, nil
}

func (r *Resolver) skippedIDs(ctx context.Context, stationID, airDate string) (map[string]struct{}, error) {
	var records []models.SkipRecord
	err := r.db.WithContext(ctx).
		Where("station_id = ? AND air_date = ?", stationID, airDate).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	ids := make(map[string]struct{}, len(records))
	for _, rec := range records {
		ids[rec.TrackID] = struct{}{}
	}
	return ids, nil
}
