/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Andrewske/music-minion-radio/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		// Station topology
		&models.Station{},
		&models.TimeRange{},

		// Content
		&models.Track{},
		&models.Playlist{},
		&models.PlaylistItem{},

		// Engine state
		&models.ScheduledTrack{},
		&models.SkipRecord{},
		&models.PlayHistory{},

		// Access
		&models.APIKey{},
	); err != nil {
		return err
	}

	if err := applyPostgresScheduleOverlapGuard(database); err != nil {
		return err
	}

	return nil
}

// applyPostgresScheduleOverlapGuard rejects schedule rows whose interval
// overlaps an existing row for the same station and air date. Builds replace
// a whole day inside one transaction, so the trigger only fires on buggy
// writers. Postgres only; SQLite and MySQL deployments rely on the builder.
func applyPostgresScheduleOverlapGuard(database *gorm.DB) error {
	if database.Dialector.Name() != "postgres" {
		return nil
	}

	stmt := `
CREATE OR REPLACE FUNCTION prevent_scheduled_track_overlap()
RETURNS trigger
LANGUAGE plpgsql
AS $$
BEGIN
  IF NEW.ends_at <= NEW.starts_at THEN
    RAISE EXCEPTION 'scheduled track end must be after start'
      USING ERRCODE = '23514';
  END IF;

  IF EXISTS (
    SELECT 1
    FROM scheduled_tracks st
    WHERE st.station_id = NEW.station_id
      AND st.air_date = NEW.air_date
      AND st.id <> NEW.id
      AND tstzrange(st.starts_at, st.ends_at, '[)') && tstzrange(NEW.starts_at, NEW.ends_at, '[)')
  ) THEN
    RAISE EXCEPTION 'overlapping scheduled tracks are not allowed for station %', NEW.station_id
      USING ERRCODE = '23514';
  END IF;

  RETURN NEW;
END;
$$;

DROP TRIGGER IF EXISTS trg_prevent_scheduled_track_overlap ON scheduled_tracks;

CREATE TRIGGER trg_prevent_scheduled_track_overlap
BEFORE INSERT OR UPDATE OF station_id, air_date, starts_at, ends_at
ON scheduled_tracks
FOR EACH ROW
EXECUTE FUNCTION prevent_scheduled_track_overlap();
`
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply postgres schedule overlap guard: %w", err)
	}

	return nil
}
