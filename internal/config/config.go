/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string
	MediaRoot   string

	JWTSigningKey string
	MetricsBind   string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Redis cache (optional; the engine runs uncached without it)
	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// NATS event mirroring (optional)
	NATSEnabled bool
	NATSURL     string
	NATSToken   string

	// Engine tunables, optionally overridden by a YAML file.
	TunablesPath string
	Tunables     Tunables
}

// Tunables are the engine knobs with sane defaults. They rarely change per
// deployment, so they live in an optional YAML file rather than environment
// variables.
type Tunables struct {
	OvershootLimitSeconds     int            `yaml:"overshoot_limit_seconds"`
	RemotePadSeconds          int            `yaml:"remote_pad_seconds"`
	MaxRemoteChecks           int            `yaml:"max_remote_checks"`
	MaxStationDepth           int            `yaml:"max_station_depth"`
	RemoteCheckTimeoutSeconds int            `yaml:"remote_check_timeout_seconds"`
	EmergencyTrack            EmergencyTrack `yaml:"emergency_track"`
}

// EmergencyTrack names the always-available local file played when a
// station's content is exhausted.
type EmergencyTrack struct {
	ID         string `yaml:"id"`
	Path       string `yaml:"path"`
	DurationMS int    `yaml:"duration_ms"`
}

// DefaultTunables returns the built-in engine defaults.
func DefaultTunables() Tunables {
	return Tunables{
		OvershootLimitSeconds:     300,
		RemotePadSeconds:          3,
		MaxRemoteChecks:           3,
		MaxStationDepth:           8,
		RemoteCheckTimeoutSeconds: 3,
	}
}

// OvershootLimit returns the schedule boundary overshoot limit.
func (t Tunables) OvershootLimit() time.Duration {
	return time.Duration(t.OvershootLimitSeconds) * time.Second
}

// RemotePad returns the buffering pad appended after remote tracks.
func (t Tunables) RemotePad() time.Duration {
	return time.Duration(t.RemotePadSeconds) * time.Second
}

// RemoteCheckTimeout returns the per-probe availability check timeout.
func (t Tunables) RemoteCheckTimeout() time.Duration {
	return time.Duration(t.RemoteCheckTimeoutSeconds) * time.Second
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("MINION_ENV", "development"),
		HTTPBind:    getEnv("MINION_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("MINION_HTTP_PORT", 8080),
		DBBackend:   DatabaseBackend(getEnv("MINION_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:       getEnv("MINION_DB_DSN", ""),
		MediaRoot:   getEnv("MINION_MEDIA_ROOT", "./media"),

		JWTSigningKey: getEnv("MINION_JWT_SIGNING_KEY", ""),
		MetricsBind:   getEnv("MINION_METRICS_BIND", "127.0.0.1:9000"),

		TracingEnabled:    getEnvBool("MINION_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("MINION_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("MINION_TRACING_SAMPLE_RATE", 1.0),

		CacheEnabled:  getEnvBool("MINION_CACHE_ENABLED", false),
		RedisAddr:     getEnv("MINION_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("MINION_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("MINION_REDIS_DB", 0),

		NATSEnabled: getEnvBool("MINION_NATS_ENABLED", false),
		NATSURL:     getEnv("MINION_NATS_URL", "nats://localhost:4222"),
		NATSToken:   getEnv("MINION_NATS_TOKEN", ""),

		TunablesPath: getEnv("MINION_TUNABLES_FILE", ""),
		Tunables:     DefaultTunables(),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("MINION_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" && strings.EqualFold(cfg.Environment, "production") {
		return nil, fmt.Errorf("MINION_JWT_SIGNING_KEY must be provided in production")
	}

	if cfg.TunablesPath != "" {
		if err := loadTunablesFile(cfg.TunablesPath, &cfg.Tunables); err != nil {
			return nil, err
		}
	}
	if err := cfg.Tunables.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadTunablesFile overlays YAML values onto the defaults already in t.
func loadTunablesFile(path string, t *Tunables) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tunables file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return fmt.Errorf("parse tunables file %s: %w", path, err)
	}
	return nil
}

func (t Tunables) validate() error {
	if t.OvershootLimitSeconds < 0 {
		return fmt.Errorf("overshoot_limit_seconds must not be negative")
	}
	if t.RemotePadSeconds < 0 {
		return fmt.Errorf("remote_pad_seconds must not be negative")
	}
	if t.MaxRemoteChecks < 0 {
		return fmt.Errorf("max_remote_checks must not be negative")
	}
	if t.MaxStationDepth < 1 {
		return fmt.Errorf("max_station_depth must be at least 1")
	}
	return nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}
