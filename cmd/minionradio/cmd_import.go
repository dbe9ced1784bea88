/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Andrewske/music-minion-radio/internal/db"
	"github.com/Andrewske/music-minion-radio/internal/models"
)

var (
	importCSVPath      string
	importPlaylistID   string
	importPlaylistName string
	importDryRun       bool
)

var importTracksCmd = &cobra.Command{
	Use:   "import-tracks",
	Short: "Import tracks from a CSV file into a playlist",
	Long: `Import tracks from a CSV file and append them to a playlist.

The CSV needs a header row with these columns (order does not matter):
  title, artist, album, duration_ms, source_type, source_uri

source_type is one of: local, spotify, youtube, soundcloud.

Examples:
  # Append to an existing playlist
  minionradio import-tracks --csv library.csv --playlist <id>

  # Create a new playlist for the imported tracks
  minionradio import-tracks --csv library.csv --playlist-name "Late Night"
`,
	RunE: runImportTracks,
}

func init() {
	importTracksCmd.Flags().StringVar(&importCSVPath, "csv", "", "Path to the CSV file (required)")
	importTracksCmd.Flags().StringVar(&importPlaylistID, "playlist", "", "Existing playlist ID to append to")
	importTracksCmd.Flags().StringVar(&importPlaylistName, "playlist-name", "", "Create a new playlist with this name")
	importTracksCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Parse and validate without writing")
	importTracksCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importTracksCmd)
}

func runImportTracks(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if (importPlaylistID == "") == (importPlaylistName == "") {
		return errors.New("exactly one of --playlist or --playlist-name is required")
	}

	file, err := os.Open(importCSVPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", importCSVPath, err)
	}
	defer file.Close()

	tracks, err := parseTrackCSV(file)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return errors.New("no tracks in CSV")
	}

	if importDryRun {
		fmt.Printf("dry run: %d track(s) parsed from %s\n", len(tracks), importCSVPath)
		return nil
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

	playlistID := importPlaylistID
	err = database.Transaction(func(tx *gorm.DB) error {
		if playlistID == "" {
			playlist := models.Playlist{ID: uuid.NewString(), Name: importPlaylistName}
			if err := tx.Create(&playlist).Error; err != nil {
				return fmt.Errorf("create playlist: %w", err)
			}
			playlistID = playlist.ID
		} else {
			var playlist models.Playlist
			if err := tx.First(&playlist, "id = ?", playlistID).Error; err != nil {
				return fmt.Errorf("load playlist %s: %w", playlistID, err)
			}
		}

		var nextPos int
		row := tx.Model(&models.PlaylistItem{}).
			Where("playlist_id = ?", playlistID).
			Select("COALESCE(MAX(position), -1) + 1")
		if err := row.Scan(&nextPos).Error; err != nil {
			return fmt.Errorf("next position: %w", err)
		}

		for i, track := range tracks {
			if err := tx.Create(&track).Error; err != nil {
				return fmt.Errorf("create track %q: %w", track.Title, err)
			}
			item := models.PlaylistItem{
				PlaylistID: playlistID,
				TrackID:    track.ID,
				Position:   nextPos + i,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("append track %q: %w", track.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("playlist_id", playlistID).
		Int("tracks", len(tracks)).
		Msg("tracks imported")
	fmt.Printf("imported %d track(s) into playlist %s\n", len(tracks), playlistID)
	return nil
}

// parseTrackCSV reads the header row to locate columns, then builds one track
// per data row. Rows with a bad duration or unknown source type abort the
// import with the offending line number.
func parseTrackCSV(r io.Reader) ([]models.Track, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"title", "duration_ms", "source_type", "source_uri"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var tracks []models.Track
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV line %d: %w", line, err)
		}

		durationMS, err := strconv.ParseInt(field(record, "duration_ms"), 10, 64)
		if err != nil || durationMS <= 0 {
			return nil, fmt.Errorf("line %d: invalid duration_ms %q", line, field(record, "duration_ms"))
		}

		sourceType := models.SourceType(field(record, "source_type"))
		switch sourceType {
		case models.SourceLocal, models.SourceSpotify, models.SourceYouTube, models.SourceSoundCloud:
		default:
			return nil, fmt.Errorf("line %d: unknown source_type %q", line, field(record, "source_type"))
		}

		uri := field(record, "source_uri")
		if uri == "" {
			return nil, fmt.Errorf("line %d: empty source_uri", line)
		}

		tracks = append(tracks, models.Track{
			ID:         uuid.NewString(),
			Title:      field(record, "title"),
			Artist:     field(record, "artist"),
			Album:      field(record, "album"),
			DurationMS: durationMS,
			SourceType: sourceType,
			SourceURI:  uri,
		})
	}
	return tracks, nil
}
