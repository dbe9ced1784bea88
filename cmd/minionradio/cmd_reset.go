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

	"github.com/Andrewske/music-minion-radio/internal/availability"
	"github.com/Andrewske/music-minion-radio/internal/content"
	"github.com/Andrewske/music-minion-radio/internal/db"
	"github.com/Andrewske/music-minion-radio/internal/fallback"
	"github.com/Andrewske/music-minion-radio/internal/models"
	"github.com/Andrewske/music-minion-radio/internal/timeline"
)

var (
	resetStationID string
	resetDate      string
)

var resetSkipsCmd = &cobra.Command{
	Use:   "reset-skips",
	Short: "Clear recorded skips so skipped tracks become playable again",
	Long: `Remove skip records, optionally scoped to one station and air date.

Skips accumulate when the fallback resolver routes around unavailable tracks.
Clearing them restores the deterministic shuffle order for the affected day.

Examples:
  # Clear today's skips for one station
  minionradio reset-skips --station <id>

  # Clear a specific day across all stations
  minionradio reset-skips --date 2026-08-30
`,
	RunE: runResetSkips,
}

func init() {
	resetSkipsCmd.Flags().StringVar(&resetStationID, "station", "", "Limit to one station ID (default all stations)")
	resetSkipsCmd.Flags().StringVar(&resetDate, "date", "", "Air date as YYYY-MM-DD (default today)")
	rootCmd.AddCommand(resetSkipsCmd)
}

func runResetSkips(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	airDate := time.Now().UTC().Format("2006-01-02")
	if resetDate != "" {
		if _, err := time.Parse("2006-01-02", resetDate); err != nil {
			return fmt.Errorf("parse --date %q: %w", resetDate, err)
		}
		airDate = resetDate
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

	tun := cfg.Tunables
	resolver := content.NewResolver(database, logger)
	calc := timeline.NewCalculator(database, resolver, tun.MaxStationDepth, logger)
	checker := availability.NewSourceChecker(nil, tun.RemoteCheckTimeout(), logger)
	fb := fallback.NewResolver(database, calc, checker, models.Track{}, tun.MaxRemoteChecks, logger)

	removed, err := fb.ResetSkips(context.Background(), resetStationID, airDate)
	if err != nil {
		return fmt.Errorf("reset skips: %w", err)
	}

	logger.Info().
		Str("station_id", resetStationID).
		Str("air_date", airDate).
		Int64("removed", removed).
		Msg("skips cleared")
	fmt.Printf("cleared %d skip record(s) for %s\n", removed, airDate)
	return nil
}
