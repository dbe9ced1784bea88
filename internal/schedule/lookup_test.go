/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/Andrewske/music-minion-radio/internal/models"
)

func TestNowPlayingPointLookup(t *testing.T) {
	b, l, db := newTestBuilder(t, Tunables{})
	seedLeaf(t, db, "leaf-1", models.ModeQueue,
		trackSpec{id: "t1", durationMS: minutes(30)},
		trackSpec{id: "t2", durationMS: minutes(30)},
	)
	seedMeta(t, db, "meta-1", models.TimeRange{
		ID: "tr-1", TargetStationID: "leaf-1", StartMinute: 360, EndMinute: 420, Position: 0,
	})
	if _, err := b.BuildDaily(context.Background(), "meta-1", testDate); err != nil {
		t.Fatalf("BuildDaily returned error: %v", err)
	}

	// 06:45 lands 15 minutes into the second track.
	at := testDate.Add(6*time.Hour + 45*time.Minute)
	row, err := l.NowPlaying(context.Background(), "meta-1", at)
	if err != nil {
		t.Fatalf("NowPlaying returned error: %v", err)
	}
	if row == nil {
		t.Fatal("NowPlaying returned nil during scheduled time")
	}
	if row.TrackID != "t2" {
		t.Errorf("track %s, want t2", row.TrackID)
	}
	if got := at.Sub(row.StartsAt); got != 15*time.Minute {
		t.Errorf("elapsed %v, want 15m", got)
	}
}

func TestNowPlayingBoundaryIsHalfOpen(t *testing.T) {
	b, l, db := newTestBuilder(t, Tunables{})
	seedLeaf(t, db, "leaf-1", models.ModeQueue,
		trackSpec{id: "t1", durationMS: minutes(30)},
		trackSpec{id: "t2", durationMS: minutes(30)},
	)
	seedMeta(t, db, "meta-1", models.TimeRange{
		ID: "tr-1", TargetStationID: "leaf-1", StartMinute: 360, EndMinute: 420, Position: 0,
	})
	if _, err := b.BuildDaily(context.Background(), "meta-1", testDate); err != nil {
		t.Fatalf("BuildDaily returned error: %v", err)
	}

	// Exactly at the seam between t1 and t2 the second track owns the instant.
	at := testDate.Add(6*time.Hour + 30*time.Minute)
	row, err := l.NowPlaying(context.Background(), "meta-1", at)
	if err != nil {
		t.Fatalf("NowPlaying returned error: %v", err)
	}
	if row == nil || row.TrackID != "t2" {
		t.Fatalf("at seam got %+v, want t2", row)
	}
}

func TestNowPlayingAcrossMidnightWrap(t *testing.T) {
	b, l, db := newTestBuilder(t, Tunables{})
	seedLeaf(t, db, "leaf-1", models.ModeQueue,
		trackSpec{id: "t1", durationMS: minutes(60)},
		trackSpec{id: "t2", durationMS: minutes(60)},
	)
	// 23:00 to 01:00 wraps past midnight; the rows carry the air date of the
	// build day even though the second track airs on the next calendar day.
	seedMeta(t, db, "meta-1", models.TimeRange{
		ID: "tr-1", TargetStationID: "leaf-1", StartMinute: 1380, EndMinute: 60, Position: 0,
	})
	if _, err := b.BuildDaily(context.Background(), "meta-1", testDate); err != nil {
		t.Fatalf("BuildDaily returned error: %v", err)
	}

	at := testDate.Add(24*time.Hour + 30*time.Minute) // Mar 15 00:30
	row, err := l.NowPlaying(context.Background(), "meta-1", at)
	if err != nil {
		t.Fatalf("NowPlaying returned error: %v", err)
	}
	if row == nil {
		t.Fatal("NowPlaying missed a wrapped row on the next calendar day")
	}
	if row.TrackID != "t2" {
		t.Errorf("track %s, want t2", row.TrackID)
	}
	if row.AirDate != "2026-03-14" {
		t.Errorf("air date %s, want 2026-03-14", row.AirDate)
	}
}

func TestNowPlayingMiss(t *testing.T) {
	b, l, db := newTestBuilder(t, Tunables{})
	seedLeaf(t, db, "leaf-1", models.ModeQueue, trackSpec{id: "t1", durationMS: minutes(30)})
	seedMeta(t, db, "meta-1", models.TimeRange{
		ID: "tr-1", TargetStationID: "leaf-1", StartMinute: 360, EndMinute: 420, Position: 0,
	})
	if _, err := b.BuildDaily(context.Background(), "meta-1", testDate); err != nil {
		t.Fatalf("BuildDaily returned error: %v", err)
	}

	row, err := l.NowPlaying(context.Background(), "meta-1", testDate.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("NowPlaying returned error: %v", err)
	}
	if row != nil {
		t.Errorf("got %+v outside any scheduled window, want nil", row)
	}
}

func TestUpcomingWindow(t *testing.T) {
	b, l, db := newTestBuilder(t, Tunables{})
	seedLeaf(t, db, "leaf-1", models.ModeQueue,
		trackSpec{id: "t1", durationMS: minutes(20)},
		trackSpec{id: "t2", durationMS: minutes(20)},
		trackSpec{id: "t3", durationMS: minutes(20)},
	)
	seedMeta(t, db, "meta-1", models.TimeRange{
		ID: "tr-1", TargetStationID: "leaf-1", StartMinute: 360, EndMinute: 420, Position: 0,
	})
	if _, err := b.BuildDaily(context.Background(), "meta-1", testDate); err != nil {
		t.Fatalf("BuildDaily returned error: %v", err)
	}

	// Half an hour's horizon from 06:10 covers the starts of t2 (06:20) but
	// not t3 (06:40).
	from := testDate.Add(6*time.Hour + 10*time.Minute)
	rows, err := l.Upcoming(context.Background(), "meta-1", from, 30*time.Minute)
	if err != nil {
		t.Fatalf("Upcoming returned error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d upcoming rows, want 1", len(rows))
	}
	if rows[0].TrackID != "t2" {
		t.Errorf("upcoming track %s, want t2", rows[0].TrackID)
	}
}

func TestUpcomingAcrossMidnightWrap(t *testing.T) {
	b, l, db := newTestBuilder(t, Tunables{})
	seedLeaf(t, db, "leaf-1", models.ModeQueue,
		trackSpec{id: "t1", durationMS: minutes(30)},
		trackSpec{id: "t2", durationMS: minutes(30)},
		trackSpec{id: "t3", durationMS: minutes(30)},
		trackSpec{id: "t4", durationMS: minutes(30)},
	)
	// 23:00 to 01:00 wraps past midnight; the 00:00 and 00:30 rows carry the
	// build day's air date.
	seedMeta(t, db, "meta-1", models.TimeRange{
		ID: "tr-1", TargetStationID: "leaf-1", StartMinute: 1380, EndMinute: 60, Position: 0,
	})
	if _, err := b.BuildDaily(context.Background(), "meta-1", testDate); err != nil {
		t.Fatalf("BuildDaily returned error: %v", err)
	}

	// 00:10 on Mar 15 with a half-hour horizon covers the 00:30 start of t4,
	// a row filed under Mar 14.
	from := testDate.Add(24*time.Hour + 10*time.Minute)
	rows, err := l.Upcoming(context.Background(), "meta-1", from, 30*time.Minute)
	if err != nil {
		t.Fatalf("Upcoming returned error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d upcoming rows, want 1", len(rows))
	}
	if rows[0].TrackID != "t4" {
		t.Errorf("upcoming track %s, want t4", rows[0].TrackID)
	}
	if rows[0].AirDate != "2026-03-14" {
		t.Errorf("air date %s, want 2026-03-14", rows[0].AirDate)
	}
}

func TestRowsReturnsFullDayInOrder(t *testing.T) {
	b, l, db := newTestBuilder(t, Tunables{})
	seedLeaf(t, db, "leaf-1", models.ModeQueue,
		trackSpec{id: "t1", durationMS: minutes(30)},
		trackSpec{id: "t2", durationMS: minutes(30)},
	)
	seedMeta(t, db, "meta-1", models.TimeRange{
		ID: "tr-1", TargetStationID: "leaf-1", StartMinute: 360, EndMinute: 420, Position: 0,
	})
	if _, err := b.BuildDaily(context.Background(), "meta-1", testDate); err != nil {
		t.Fatalf("BuildDaily returned error: %v", err)
	}

	rows, err := l.Rows(context.Background(), "meta-1", "2026-03-14")
	if err != nil {
		t.Fatalf("Rows returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	for i, want := range []string{"t1", "t2"} {
		if rows[i].TrackID != want {
			t.Errorf("row %d track %s, want %s", i, rows[i].TrackID, want)
		}
	}
}
