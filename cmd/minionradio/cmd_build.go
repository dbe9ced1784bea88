/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Andrewske/music-minion-radio/internal/content"
	"github.com/Andrewske/music-minion-radio/internal/db"
	"github.com/Andrewske/music-minion-radio/internal/schedule"
)

var (
	buildStationID string
	buildDate      string
	buildTomorrow  bool
)

var buildScheduleCmd = &cobra.Command{
	Use:   "build-schedule",
	Short: "Materialize one day of schedule rows for a station",
	Long: `Lay out a station's time ranges into scheduled rows for a single air date.

The rebuild is idempotent: existing rows for the station and date are replaced
in one transaction, so re-running the command is always safe.

Intended to run nightly from cron:
  minionradio build-schedule --station <id> --tomorrow
`,
	RunE: runBuildSchedule,
}

func init() {
	buildScheduleCmd.Flags().StringVar(&buildStationID, "station", "", "Meta station ID to build (required)")
	buildScheduleCmd.Flags().StringVar(&buildDate, "date", "", "Air date as YYYY-MM-DD (default today)")
	buildScheduleCmd.Flags().BoolVar(&buildTomorrow, "tomorrow", false, "Build for tomorrow instead of today")
	buildScheduleCmd.MarkFlagRequired("station")
	rootCmd.AddCommand(buildScheduleCmd)
}

func runBuildSchedule(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	date := time.Now().UTC()
	switch {
	case buildDate != "":
		parsed, err := time.Parse("2006-01-02", buildDate)
		if err != nil {
			return fmt.Errorf("parse --date %q: %w", buildDate, err)
		}
		date = parsed
	case buildTomorrow:
		date = date.AddDate(0, 0, 1)
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			logger.Error().Err(err).Msg("close database")
		}
	}()
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	tun := cfg.Tunables
	builder := schedule.NewBuilder(database, content.NewResolver(database, logger), schedule.Tunables{
		OvershootLimit: tun.OvershootLimit(),
		RemotePad:      tun.RemotePad(),
	}, logger)

	rows, err := builder.BuildDaily(context.Background(), buildStationID, date)
	if err != nil {
		return fmt.Errorf("build schedule: %w", err)
	}

	logger.Info().
		Str("station_id", buildStationID).
		Str("date", date.Format("2006-01-02")).
		Int("rows", len(rows)).
		Msg("schedule built")
	fmt.Printf("built %d rows for station %s on %s\n", len(rows), buildStationID, date.Format("2006-01-02"))
	return nil
}
