/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Andrewske/music-minion-radio/internal/content"
	"github.com/Andrewske/music-minion-radio/internal/models"
)

func newTestBuilder(t *testing.T, tunables Tunables) (*Builder, *Lookup, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Station{}, &models.TimeRange{},
		&models.Track{}, &models.Playlist{}, &models.PlaylistItem{},
		&models.SkipRecord{}, &models.ScheduledTrack{},
	)
	if err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	resolver := content.NewResolver(db, zerolog.Nop())
	return NewBuilder(db, resolver, tunables, zerolog.Nop()), NewLookup(db, zerolog.Nop()), db
}

type trackSpec struct {
	id         string
	durationMS int64
	source     models.SourceType
}

func seedLeaf(t *testing.T, db *gorm.DB, stationID string, mode models.StationMode, tracks ...trackSpec) {
	t.Helper()

	playlistID := "pl-" + stationID
	if err := db.Create(&models.Playlist{ID: playlistID, Name: playlistID}).Error; err != nil {
		t.Fatalf("failed to create playlist: %v", err)
	}
	station := models.Station{
		ID:         stationID,
		Name:       "station " + stationID,
		Kind:       models.StationLeaf,
		Mode:       mode,
		PlaylistID: playlistID,
	}
	if err := db.Create(&station).Error; err != nil {
		t.Fatalf("failed to create station: %v", err)
	}
	for i, spec := range tracks {
		source := spec.source
		if source == "" {
			source = models.SourceLocal
		}
		track := models.Track{
			ID:         spec.id,
			Title:      "Track " + spec.id,
			DurationMS: spec.durationMS,
			SourceType: source,
			SourceURI:  "/music/" + spec.id + ".mp3",
		}
		if err := db.Create(&track).Error; err != nil {
			t.Fatalf("failed to create track: %v", err)
		}
		item := models.PlaylistItem{PlaylistID: playlistID, TrackID: spec.id, Position: i}
		if err := db.Create(&item).Error; err != nil {
			t.Fatalf("failed to create playlist item: %v", err)
		}
	}
}

func seedMeta(t *testing.T, db *gorm.DB, stationID string, ranges ...models.TimeRange) {
	t.Helper()

	station := models.Station{
		ID:   stationID,
		Name: "station " + stationID,
		Kind: models.StationMeta,
		Mode: models.ModeQueue,
	}
	if err := db.Create(&station).Error; err != nil {
		t.Fatalf("failed to create meta station: %v", err)
	}
	for i := range ranges {
		ranges[i].StationID = stationID
		if err := db.Create(&ranges[i]).Error; err != nil {
			t.Fatalf("failed to create time range: %v", err)
		}
	}
}

func minutes(n int64) int64 { return n * 60 * 1000 }

var testDate = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func TestBuildDailyContiguousRows(t *testing.T) {
	b, _, db := newTestBuilder(t, Tunables{})
	seedLeaf(t, db, "leaf-1", models.ModeQueue,
		trackSpec{id: "t1", durationMS: minutes(40)},
		trackSpec{id: "t2", durationMS: minutes(40)},
		trackSpec{id: "t3", durationMS: minutes(40)},
	)
	seedMeta(t, db, "meta-1", models.TimeRange{
		ID: "tr-1", TargetStationID: "leaf-1", StartMinute: 360, EndMinute: 480, Position: 0,
	})

	rows, err := b.BuildDaily(context.Background(), "meta-1", testDate)
	if err != nil {
		t.Fatalf("BuildDaily returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	wantStart := testDate.Add(6 * time.Hour)
	if !rows[0].StartsAt.Equal(wantStart) {
		t.Errorf("first row starts at %v, want %v", rows[0].StartsAt, wantStart)
	}
	for i := 1; i < len(rows); i++ {
		if !rows[i].StartsAt.Equal(rows[i-1].EndsAt) {
			t.Errorf("row %d starts at %v, previous ends at %v", i, rows[i].StartsAt, rows[i-1].EndsAt)
		}
		if rows[i].Position != rows[i-1].Position+1 {
			t.Errorf("row %d position %d, previous %d", i, rows[i].Position, rows[i-1].Position)
		}
	}
}

func TestBuildDailyBoundarySwap(t *testing.T) {
	b, _, db := newTestBuilder(t, Tunables{})
	// One hour range. After the 50 minute opener, the 20 minute track would
	// overshoot by 10 minutes; the 5 minute track fits and is pulled forward.
	seedLeaf(t, db, "leaf-1", models.ModeQueue,
		trackSpec{id: "long", durationMS: minutes(50)},
		trackSpec{id: "over", durationMS: minutes(20)},
		trackSpec{id: "short", durationMS: minutes(5)},
	)
	seedMeta(t, db, "meta-1", models.TimeRange{
		ID: "tr-1", TargetStationID: "leaf-1", StartMinute: 360, EndMinute: 420, Position: 0,
	})

	rows, err := b.BuildDaily(context.Background(), "meta-1", testDate)
	if err != nil {
		t.Fatalf("BuildDaily returned error: %v", err)
	}

	want := []string{"long", "short", "over"}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i, id := range want {
		if rows[i].TrackID != id {
			t.Errorf("row %d track %s, want %s", i, rows[i].TrackID, id)
		}
	}

	// The swapped-in short track keeps the boundary within the limit.
	rangeEnd := testDate.Add(7 * time.Hour)
	if got := rows[1].EndsAt.Sub(rangeEnd); got > 0 {
		t.Errorf("short track overshoots by %v", got)
	}
	// The deferred long track closes the range with an accepted overshoot
	// because nothing shorter remained.
	if got := rows[2].EndsAt.Sub(rangeEnd); got != 15*time.Minute {
		t.Errorf("final overshoot %v, want 15m", got)
	}
}

func TestBuildDailyAcceptsSmallOvershoot(t *testing.T) {
	b, _, db := newTestBuilder(t, Tunables{})
	// 62 minutes of content in a 60 minute range: 2 minute overshoot is
	// within the limit, so no swap happens.
	seedLeaf(t, db, "leaf-1", models.ModeQueue,
		trackSpec{id: "t1", durationMS: minutes(30)},
		trackSpec{id: "t2", durationMS: minutes(32)},
		trackSpec{id: "t3", durationMS: minutes(5)},
	)
	seedMeta(t, db, "meta-1", models.TimeRange{
		ID: "tr-1", TargetStationID: "leaf-1", StartMinute: 0, EndMinute: 60, Position: 0,
	})

	rows, err := b.BuildDaily(context.Background(), "meta-1", testDate)
	if err != nil {
		t.Fatalf("BuildDaily returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[1].TrackID != "t2" {
		t.Errorf("second row track %s, want t2", rows[1].TrackID)
	}
}

func TestBuildDailyRemotePad(t *testing.T) {
	b, _, db := newTestBuilder(t, Tunables{})
	seedLeaf(t, db, "leaf-1", models.ModeQueue,
		trackSpec{id: "yt", durationMS: minutes(4), source: models.SourceYouTube},
		trackSpec{id: "local", durationMS: minutes(4)},
	)
	seedMeta(t, db, "meta-1", models.TimeRange{
		ID: "tr-1", TargetStationID: "leaf-1", StartMinute: 0, EndMinute: 10, Position: 0,
	})

	rows, err := b.BuildDaily(context.Background(), "meta-1", testDate)
	if err != nil {
		t.Fatalf("BuildDaily returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	wantEnd := testDate.Add(4*time.Minute + DefaultRemotePad)
	if !rows[0].EndsAt.Equal(wantEnd) {
		t.Errorf("remote track ends at %v, want %v", rows[0].EndsAt, wantEnd)
	}
	if !rows[1].StartsAt.Equal(wantEnd) {
		t.Errorf("next track starts at %v, want padded %v", rows[1].StartsAt, wantEnd)
	}
	if !rows[1].EndsAt.Equal(wantEnd.Add(4 * time.Minute)) {
		t.Errorf("local track got padded: ends at %v", rows[1].EndsAt)
	}
}

func TestBuildDailyIdempotentRebuild(t *testing.T) {
	b, _, db := newTestBuilder(t, Tunables{})
	seedLeaf(t, db, "leaf-1", models.ModeShuffle,
		trackSpec{id: "t1", durationMS: minutes(20)},
		trackSpec{id: "t2", durationMS: minutes(20)},
		trackSpec{id: "t3", durationMS: minutes(20)},
		trackSpec{id: "t4", durationMS: minutes(20)},
	)
	seedMeta(t, db, "meta-1", models.TimeRange{
		ID: "tr-1", TargetStationID: "leaf-1", StartMinute: 360, EndMinute: 420, Position: 0,
	})

	first, err := b.BuildDaily(context.Background(), "meta-1", testDate)
	if err != nil {
		t.Fatalf("first BuildDaily returned error: %v", err)
	}
	second, err := b.BuildDaily(context.Background(), "meta-1", testDate)
	if err != nil {
		t.Fatalf("second BuildDaily returned error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("rebuild changed row count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].TrackID != second[i].TrackID {
			t.Errorf("row %d: rebuild changed track %s to %s", i, first[i].TrackID, second[i].TrackID)
		}
		if !first[i].StartsAt.Equal(second[i].StartsAt) {
			t.Errorf("row %d: rebuild changed start %v to %v", i, first[i].StartsAt, second[i].StartsAt)
		}
	}

	// Only one generation survives in storage.
	var count int64
	if err := db.Model(&models.ScheduledTrack{}).
		Where("station_id = ? AND air_date = ?", "meta-1", "2026-03-14").
		Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != int64(len(second)) {
		t.Errorf("stored %d rows after rebuild, want %d", count, len(second))
	}
}

func TestBuildDailyMultipleRanges(t *testing.T) {
	b, _, db := newTestBuilder(t, Tunables{})
	seedLeaf(t, db, "leaf-a", models.ModeQueue, trackSpec{id: "a1", durationMS: minutes(60)})
	seedLeaf(t, db, "leaf-b", models.ModeQueue, trackSpec{id: "b1", durationMS: minutes(60)})
	seedMeta(t, db, "meta-1",
		models.TimeRange{ID: "tr-1", TargetStationID: "leaf-a", StartMinute: 360, EndMinute: 420, Position: 0},
		models.TimeRange{ID: "tr-2", TargetStationID: "leaf-b", StartMinute: 420, EndMinute: 480, Position: 1},
	)

	rows, err := b.BuildDaily(context.Background(), "meta-1", testDate)
	if err != nil {
		t.Fatalf("BuildDaily returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].TrackID != "a1" || rows[1].TrackID != "b1" {
		t.Errorf("range ordering: got %s then %s", rows[0].TrackID, rows[1].TrackID)
	}
	if rows[0].TimeRangeID != "tr-1" || rows[1].TimeRangeID != "tr-2" {
		t.Errorf("time range attribution: %s, %s", rows[0].TimeRangeID, rows[1].TimeRangeID)
	}
	if rows[0].Position != 0 || rows[1].Position != 1 {
		t.Errorf("positions not monotonic across ranges: %d, %d", rows[0].Position, rows[1].Position)
	}
}

func TestBuildDailyRejectsLeafStation(t *testing.T) {
	b, _, db := newTestBuilder(t, Tunables{})
	seedLeaf(t, db, "leaf-1", models.ModeQueue, trackSpec{id: "t1", durationMS: minutes(3)})

	if _, err := b.BuildDaily(context.Background(), "leaf-1", testDate); err == nil {
		t.Error("expected error building schedule for leaf station")
	}
}

func TestBuildDailyEmptyTarget(t *testing.T) {
	b, _, db := newTestBuilder(t, Tunables{})
	seedLeaf(t, db, "leaf-empty", models.ModeQueue)
	seedMeta(t, db, "meta-1", models.TimeRange{
		ID: "tr-1", TargetStationID: "leaf-empty", StartMinute: 0, EndMinute: 60, Position: 0,
	})

	rows, err := b.BuildDaily(context.Background(), "meta-1", testDate)
	if err != nil {
		t.Fatalf("BuildDaily returned error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows for empty target, want 0", len(rows))
	}
}
