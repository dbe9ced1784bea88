/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Andrewske/music-minion-radio/internal/content"
	"github.com/Andrewske/music-minion-radio/internal/models"
)

func newTestCalculator(t *testing.T) (*Calculator, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Station{}, &models.TimeRange{},
		&models.Track{}, &models.Playlist{}, &models.PlaylistItem{},
		&models.SkipRecord{},
	)
	if err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	resolver := content.NewResolver(db, zerolog.Nop())
	return NewCalculator(db, resolver, 0, zerolog.Nop()), db
}

// seedLeaf creates a queue-mode leaf station with tracks of the given
// durations, IDs t0, t1, ...
func seedLeaf(t *testing.T, db *gorm.DB, stationID string, durationsMS ...int64) {
	t.Helper()
	playlistID := "pl-" + stationID
	if err := db.Create(&models.Playlist{ID: playlistID, Name: playlistID}).Error; err != nil {
		t.Fatalf("failed to create playlist: %v", err)
	}
	for i, d := range durationsMS {
		id := stationID + "-t" + string(rune('0'+i))
		track := models.Track{ID: id, Title: id, DurationMS: d, SourceType: models.SourceLocal, SourceURI: "/music/" + id + ".mp3"}
		if err := db.Create(&track).Error; err != nil {
			t.Fatalf("failed to create track: %v", err)
		}
		if err := db.Create(&models.PlaylistItem{PlaylistID: playlistID, TrackID: id, Position: i}).Error; err != nil {
			t.Fatalf("failed to create playlist item: %v", err)
		}
	}
	station := models.Station{ID: stationID, Name: stationID, Kind: models.StationLeaf, Mode: models.ModeQueue, PlaylistID: playlistID}
	if err := db.Create(&station).Error; err != nil {
		t.Fatalf("failed to create station: %v", err)
	}
}

func midnightUTC(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveModularWalk(t *testing.T) {
	calc, db := newTestCalculator(t)
	// Queue order: t0 200s, t1 300s, t2 100s. Total 600s.
	seedLeaf(t, db, "dnb", 200000, 300000, 100000)

	day := midnightUTC(2026, 3, 14)

	tests := []struct {
		name       string
		at         time.Time
		wantTrack  string
		wantOffset int64
		wantNext   string
	}{
		{"start of day", day, "dnb-t0", 0, "dnb-t1"},
		{"inside second track", day.Add(250 * time.Second), "dnb-t1", 50000, "dnb-t2"},
		{"last track wraps to first", day.Add(550 * time.Second), "dnb-t2", 50000, "dnb-t0"},
		{"second loop", day.Add(850 * time.Second), "dnb-t1", 50000, "dnb-t2"},
		{"exact boundary starts next track", day.Add(200 * time.Second), "dnb-t1", 0, "dnb-t2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := calc.Resolve(context.Background(), "dnb", tt.at)
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			if res == nil {
				t.Fatal("Resolve returned no content")
			}
			if res.Track.ID != tt.wantTrack {
				t.Errorf("track = %s, want %s", res.Track.ID, tt.wantTrack)
			}
			if res.OffsetMS != tt.wantOffset {
				t.Errorf("offset = %d, want %d", res.OffsetMS, tt.wantOffset)
			}
			if res.Next.ID != tt.wantNext {
				t.Errorf("next = %s, want %s", res.Next.ID, tt.wantNext)
			}
		})
	}
}

func TestResolveUpcomingPreview(t *testing.T) {
	calc, db := newTestCalculator(t)
	seedLeaf(t, db, "st", 100000, 100000, 100000)

	res, err := calc.Resolve(context.Background(), "st", midnightUTC(2026, 3, 14))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res == nil {
		t.Fatal("Resolve returned no content")
	}
	// Three tracks loop: preview wraps around the list.
	want := []string{"st-t1", "st-t2", "st-t0", "st-t1", "st-t2"}
	if len(res.Upcoming) != len(want) {
		t.Fatalf("upcoming length = %d, want %d", len(res.Upcoming), len(want))
	}
	for i, id := range want {
		if res.Upcoming[i].ID != id {
			t.Errorf("upcoming[%d] = %s, want %s", i, res.Upcoming[i].ID, id)
		}
	}
}

func TestResolveShuffleDeterminism(t *testing.T) {
	calc, db := newTestCalculator(t)
	seedLeaf(t, db, "mix", 200000, 300000, 100000, 240000, 180000)
	if err := db.Model(&models.Station{}).Where("id = ?", "mix").Update("mode", models.ModeShuffle).Error; err != nil {
		t.Fatalf("failed to switch station mode: %v", err)
	}

	at := midnightUTC(2026, 3, 14).Add(9*time.Minute + 30*time.Second)

	first, err := calc.Resolve(context.Background(), "mix", at)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	second, err := calc.Resolve(context.Background(), "mix", at)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if first == nil || second == nil {
		t.Fatal("Resolve returned no content")
	}
	if first.Track.ID != second.Track.ID || first.OffsetMS != second.OffsetMS {
		t.Errorf("resolution not deterministic: (%s, %d) vs (%s, %d)",
			first.Track.ID, first.OffsetMS, second.Track.ID, second.OffsetMS)
	}
}

func TestResolveMetaRangeStart(t *testing.T) {
	calc, db := newTestCalculator(t)
	// Meta "main" sends 06:00-09:00 to leaf "chill" (tracks 30min, 45min).
	seedLeaf(t, db, "chill", 1800000, 2700000)
	main := models.Station{ID: "main", Name: "Main", Kind: models.StationMeta}
	if err := db.Create(&main).Error; err != nil {
		t.Fatalf("failed to create meta station: %v", err)
	}
	rng := models.TimeRange{ID: "tr-1", StationID: "main", TargetStationID: "chill", StartMinute: 6 * 60, EndMinute: 9 * 60, Position: 0}
	if err := db.Create(&rng).Error; err != nil {
		t.Fatalf("failed to create time range: %v", err)
	}

	at := midnightUTC(2026, 3, 14).Add(7 * time.Hour)
	res, err := calc.Resolve(context.Background(), "main", at)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res == nil {
		t.Fatal("Resolve returned no content")
	}

	wantStart := midnightUTC(2026, 3, 14).Add(6 * time.Hour)
	if !res.RangeStart.Equal(wantStart) {
		t.Errorf("range start = %v, want %v", res.RangeStart, wantStart)
	}
	// One hour into the 75-minute loop: 30min track done, 30min into t1.
	if res.Track.ID != "chill-t1" {
		t.Errorf("track = %s, want chill-t1", res.Track.ID)
	}
	if res.OffsetMS != 1800000 {
		t.Errorf("offset = %d, want 1800000", res.OffsetMS)
	}
	if res.Station.ID != "chill" {
		t.Errorf("resolved station = %s, want chill", res.Station.ID)
	}
}

func TestResolveMidnightWrap(t *testing.T) {
	calc, db := newTestCalculator(t)
	seedLeaf(t, db, "night", 600000)
	meta := models.Station{ID: "main", Name: "Main", Kind: models.StationMeta}
	if err := db.Create(&meta).Error; err != nil {
		t.Fatalf("failed to create meta station: %v", err)
	}
	rng := models.TimeRange{ID: "tr-1", StationID: "main", TargetStationID: "night", StartMinute: 22 * 60, EndMinute: 6 * 60, Position: 0}
	if err := db.Create(&rng).Error; err != nil {
		t.Fatalf("failed to create time range: %v", err)
	}

	day := midnightUTC(2026, 3, 14)

	tests := []struct {
		name       string
		at         time.Time
		active     bool
		rangeStart time.Time
	}{
		{"23:30 active", day.Add(23*time.Hour + 30*time.Minute), true, day.Add(22 * time.Hour)},
		{"03:00 active, range began yesterday", day.Add(27 * time.Hour), true, day.Add(22 * time.Hour)},
		{"12:00 inactive", day.Add(12 * time.Hour), false, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := calc.Resolve(context.Background(), "main", tt.at)
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			if !tt.active {
				if res != nil {
					t.Fatalf("expected no content at %v, got track %s", tt.at, res.Track.ID)
				}
				return
			}
			if res == nil {
				t.Fatalf("expected content at %v", tt.at)
			}
			if !res.RangeStart.Equal(tt.rangeStart) {
				t.Errorf("range start = %v, want %v", res.RangeStart, tt.rangeStart)
			}
		})
	}
}

func TestResolveOverlappingRangesLowestPositionWins(t *testing.T) {
	calc, db := newTestCalculator(t)
	seedLeaf(t, db, "a", 60000)
	seedLeaf(t, db, "b", 60000)
	meta := models.Station{ID: "main", Name: "Main", Kind: models.StationMeta}
	if err := db.Create(&meta).Error; err != nil {
		t.Fatalf("failed to create meta station: %v", err)
	}
	ranges := []models.TimeRange{
		{ID: "tr-b", StationID: "main", TargetStationID: "b", StartMinute: 0, EndMinute: 24 * 60, Position: 1},
		{ID: "tr-a", StationID: "main", TargetStationID: "a", StartMinute: 8 * 60, EndMinute: 12 * 60, Position: 0},
	}
	for i := range ranges {
		if err := db.Create(&ranges[i]).Error; err != nil {
			t.Fatalf("failed to create time range: %v", err)
		}
	}

	res, err := calc.Resolve(context.Background(), "main", midnightUTC(2026, 3, 14).Add(10*time.Hour))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res == nil {
		t.Fatal("Resolve returned no content")
	}
	if res.Station.ID != "a" {
		t.Errorf("resolved station = %s, want a (lowest position)", res.Station.ID)
	}
}

func TestResolveDepthBound(t *testing.T) {
	calc, db := newTestCalculator(t)
	// Station pointing at itself all day.
	meta := models.Station{ID: "loop", Name: "Loop", Kind: models.StationMeta}
	if err := db.Create(&meta).Error; err != nil {
		t.Fatalf("failed to create meta station: %v", err)
	}
	rng := models.TimeRange{ID: "tr-loop", StationID: "loop", TargetStationID: "loop", StartMinute: 0, EndMinute: 24 * 60, Position: 0}
	if err := db.Create(&rng).Error; err != nil {
		t.Fatalf("failed to create time range: %v", err)
	}

	_, err := calc.Resolve(context.Background(), "loop", midnightUTC(2026, 3, 14).Add(time.Hour))
	if !errors.Is(err, ErrDepthExceeded) {
		t.Errorf("error = %v, want ErrDepthExceeded", err)
	}
}

func TestResolveNoContentCases(t *testing.T) {
	calc, db := newTestCalculator(t)

	// Leaf with empty playlist.
	if err := db.Create(&models.Playlist{ID: "pl-empty", Name: "empty"}).Error; err != nil {
		t.Fatalf("failed to create playlist: %v", err)
	}
	empty := models.Station{ID: "empty", Name: "Empty", Kind: models.StationLeaf, Mode: models.ModeQueue, PlaylistID: "pl-empty"}
	if err := db.Create(&empty).Error; err != nil {
		t.Fatalf("failed to create station: %v", err)
	}

	res, err := calc.Resolve(context.Background(), "empty", midnightUTC(2026, 3, 14))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res != nil {
		t.Error("empty content should resolve to no content")
	}

	// Leaf whose tracks all have zero duration must not divide by zero.
	seedLeaf(t, db, "silent", 0, 0)
	res, err = calc.Resolve(context.Background(), "silent", midnightUTC(2026, 3, 14))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res != nil {
		t.Error("zero total duration should resolve to no content")
	}
}

func TestResolveUnknownStation(t *testing.T) {
	calc, _ := newTestCalculator(t)
	_, err := calc.Resolve(context.Background(), "missing", midnightUTC(2026, 3, 14))
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("error = %v, want wrapped gorm.ErrRecordNotFound", err)
	}
}
