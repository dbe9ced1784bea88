/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package availability implements the source checkers injected into the
// fallback resolver, keeping filesystem and network code out of the engine.
package availability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Andrewske/music-minion-radio/internal/models"
)

// DefaultProbeTimeout bounds each remote availability probe so a hung call
// cannot stall the resolution path.
const DefaultProbeTimeout = 3 * time.Second

// SourceChecker dispatches availability checks by source type: a filesystem
// stat for local tracks, an HTTP HEAD probe for remote ones.
type SourceChecker struct {
	client  *http.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// NewSourceChecker constructs a checker. timeout <= 0 selects
// DefaultProbeTimeout. A nil client uses http.DefaultClient.
func NewSourceChecker(client *http.Client, timeout time.Duration, logger zerolog.Logger) *SourceChecker {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &SourceChecker{client: client, timeout: timeout, logger: logger}
}

// IsAvailable reports whether the track's source is playable right now.
func (c *SourceChecker) IsAvailable(ctx context.Context, track models.Track) (bool, error) {
	if track.SourceType == models.SourceLocal {
		return c.checkLocal(track)
	}
	return c.checkRemote(ctx, track)
}

func (c *SourceChecker) checkLocal(track models.Track) (bool, error) {
	info, err := os.Stat(track.SourceURI)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", track.SourceURI, err)
	}
	return !info.IsDir(), nil
}

func (c *SourceChecker) checkRemote(ctx context.Context, track models.Track) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, track.SourceURI, nil)
	if err != nil {
		return false, fmt.Errorf("build probe for %s: %w", track.SourceURI, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Network failure is an unavailability signal, not a caller error.
		c.logger.Debug().Err(err).Str("track", track.ID).Msg("remote probe failed")
		return false, nil
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusBadRequest, nil
}
