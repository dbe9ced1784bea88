/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version carries build-time version information.
package version

// Version is the current version of the timeline engine.
// Set at build time via ldflags:
//
//	-X github.com/Andrewske/music-minion-radio/internal/version.Version=X.Y.Z
var Version = "dev"
