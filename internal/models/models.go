/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// StationKind distinguishes content stations from schedule stations.
type StationKind string

const (
	// StationLeaf points directly at playable content.
	StationLeaf StationKind = "leaf"
	// StationMeta carries a schedule of time ranges targeting other stations.
	StationMeta StationKind = "meta"
)

// StationMode controls content ordering for leaf stations.
type StationMode string

const (
	ModeShuffle StationMode = "shuffle"
	ModeQueue   StationMode = "queue"
)

// SourceType enumerates where track audio lives.
type SourceType string

const (
	SourceLocal      SourceType = "local"
	SourceYouTube    SourceType = "youtube"
	SourceSoundCloud SourceType = "soundcloud"
	SourceSpotify    SourceType = "spotify"
)

// Remote reports whether the source needs network buffering before playback.
func (s SourceType) Remote() bool {
	return s == SourceYouTube || s == SourceSoundCloud || s == SourceSpotify
}

// Station is a named content source. Leaf stations reference a playlist;
// meta stations own a set of time ranges. At most one station is active.
type Station struct {
	ID         string      `gorm:"type:uuid;primaryKey"`
	Name       string      `gorm:"uniqueIndex"`
	Kind       StationKind `gorm:"type:varchar(8)"`
	Mode       StationMode `gorm:"type:varchar(8)"`
	PlaylistID string      `gorm:"type:uuid;index"`
	Timezone   string      `gorm:"type:varchar(32)"`
	Active     bool        `gorm:"index"`
	TimeRanges []TimeRange `gorm:"foreignKey:StationID"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TimeRange is a daily recurring interval within a meta station's schedule.
// Start and end are minutes of day; end < start wraps past midnight. Ranges
// are walked in position order and the lowest position wins on overlap.
type TimeRange struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	StationID       string `gorm:"type:uuid;index"`
	TargetStationID string `gorm:"type:uuid"`
	StartMinute     int
	EndMinute       int
	Position        int `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Wraps reports whether the range crosses midnight.
func (r TimeRange) Wraps() bool {
	return r.EndMinute < r.StartMinute
}

// Contains reports whether the given minute of day falls within [start, end),
// treating end < start as wrapping through midnight.
func (r TimeRange) Contains(minute int) bool {
	if r.StartMinute == r.EndMinute {
		return true
	}
	if r.Wraps() {
		return minute >= r.StartMinute || minute < r.EndMinute
	}
	return minute >= r.StartMinute && minute < r.EndMinute
}

// Track is an audio asset owned by the surrounding music library. SourceURI
// is permanent (file path or canonical remote URL), never an ephemeral
// stream URL.
type Track struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	Title      string `gorm:"index"`
	Artist     string `gorm:"index"`
	Album      string
	DurationMS int64
	SourceType SourceType `gorm:"type:varchar(16);index"`
	SourceURI  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Duration returns the track length as a time.Duration.
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// Playlist is an ordered collection of tracks.
type Playlist struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Name        string `gorm:"uniqueIndex"`
	Description string `gorm:"type:text"`
	Items       []PlaylistItem `gorm:"foreignKey:PlaylistID"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PlaylistItem orders one track within a playlist.
type PlaylistItem struct {
	PlaylistID string `gorm:"type:uuid;primaryKey"`
	TrackID    string `gorm:"type:uuid;primaryKey"`
	Position   int    `gorm:"index"`
}

// ScheduledTrack is one row of a pre-computed daily schedule. For a fixed
// (station, air date) rows are contiguous, non-overlapping, and ordered by
// position; a rebuild replaces the whole generation.
type ScheduledTrack struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	StationID   string `gorm:"type:uuid;index:idx_sched_lookup,priority:1"`
	AirDate     string `gorm:"type:varchar(10);index:idx_sched_lookup,priority:2"`
	TrackID     string `gorm:"type:uuid"`
	SourceType  SourceType `gorm:"type:varchar(16)"`
	SourceURI   string
	StartsAt    time.Time `gorm:"index:idx_sched_lookup,priority:3"`
	EndsAt      time.Time
	Position    int
	TimeRangeID string `gorm:"type:uuid"`
	CreatedAt   time.Time
}

// SkipRecord marks a track unavailable for a station on one air date. The
// composite unique index makes concurrent upserts idempotent.
type SkipRecord struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	StationID string `gorm:"type:uuid;uniqueIndex:idx_skip_key,priority:1"`
	TrackID   string `gorm:"type:uuid;uniqueIndex:idx_skip_key,priority:2"`
	AirDate   string `gorm:"type:varchar(10);uniqueIndex:idx_skip_key,priority:3"`
	Reason    string `gorm:"type:varchar(64)"`
	CreatedAt time.Time
}

// PlayHistory records tracks handed to the streaming engine.
type PlayHistory struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	StationID string `gorm:"type:uuid;index"`
	TrackID   string `gorm:"type:uuid"`
	Title     string
	Artist    string
	StartedAt time.Time `gorm:"index"`
	OffsetMS  int64
	Emergency bool
}

// APIKey authenticates admin API callers. Only the sha256 hash is stored.
type APIKey struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	Name       string
	KeyHash    string `gorm:"uniqueIndex"`
	Revoked    bool
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
