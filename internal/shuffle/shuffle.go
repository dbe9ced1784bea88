/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package shuffle provides the deterministic permutation used by shuffle-mode
// stations. The same (station, date) seed key always yields the same order,
// across processes and restarts, so playback position can be recomputed from
// scratch at any instant.
package shuffle

import (
	"hash/fnv"
	"math/rand"

	"github.com/Andrewske/music-minion-radio/internal/models"
)

// SeedKey derives the shuffle seed key for a station and calendar date
// (formatted 2006-01-02).
func SeedKey(stationID, airDate string) string {
	return stationID + "-" + airDate
}

// Deterministic returns a new slice holding a seeded Fisher-Yates permutation
// of tracks. The input slice is not modified. The permutation depends only on
// seedKey; math/rand's generator is stable under the Go 1 compatibility
// promise, so the order survives restarts and upgrades.
func Deterministic(tracks []models.Track, seedKey string) []models.Track {
	out := make([]models.Track, len(tracks))
	copy(out, tracks)
	if len(out) < 2 {
		return out
	}

	rng := rand.New(rand.NewSource(seed(seedKey)))
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// seed hashes the key with FNV-1a 64. The sign bit conversion is lossless
// for seeding purposes; NewSource accepts any int64.
func seed(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}
