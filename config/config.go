// Package config loads the gatekeeper service's runtime configuration
// (spec.md §6 control inputs): dry-run mode, audit and enforcement-log
// rotation, storage locations, the timestamping service endpoint, and the
// admin authentication secret. Load refuses to return a usable Config on any
// validation failure (spec.md §7: the process must refuse to start rather
// than run with defaulted, possibly unsafe settings).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures every runtime setting the gatekeeper service needs.
type Config struct {
	ServerID string `yaml:"server_id"`
	Listen   string `yaml:"listen"`
	DryRun   bool   `yaml:"dry_run"`

	Storage       StorageConfig       `yaml:"storage"`
	Audit         AuditConfig         `yaml:"audit"`
	Enforcement   EnforcementConfig   `yaml:"enforcement"`
	Timestamping  TimestampingConfig  `yaml:"timestamping"`
	Veto          VetoConfig          `yaml:"veto"`
	Admin         AdminConfig         `yaml:"admin"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig locates the change-request KV store, the economic-node
// relational database, the Merkle anchor store, and the veto signal store.
type StorageConfig struct {
	ChangeRequestDBPath string `yaml:"change_request_db_path"`
	EconNodeDSN         string `yaml:"econ_node_dsn"`
	AnchorDBPath        string `yaml:"anchor_db_path"`
	VetoDBPath          string `yaml:"veto_db_path"`
}

// AuditConfig controls the hash-chained audit log.
type AuditConfig struct {
	LogPath              string `yaml:"log_path"`
	RotationIntervalDays int    `yaml:"rotation_interval_days"`
}

// EnforcementConfig controls the non-hash-chained, rotating decision log.
type EnforcementConfig struct {
	Enabled    bool   `yaml:"enabled"`
	LogPath    string `yaml:"log_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TimestampingConfig locates the external timestamping service C11 anchors
// against.
type TimestampingConfig struct {
	URL             string        `yaml:"url"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
	Burst           int           `yaml:"burst"`
	AnchorInterval  time.Duration `yaml:"anchor_interval"`
}

// VetoConfig resolves spec.md §9's Open Question on the veto denominator:
// the only accepted value is "participation" (percentages are taken over
// cast signals within each cohort, not over total network weight).
type VetoConfig struct {
	DenominatorMode string `yaml:"denominator_mode"`
}

// AdminConfig carries the shared secret the authz package verifies admin
// bearer tokens against.
type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// ObservabilityConfig controls structured logging and OpenTelemetry export.
type ObservabilityConfig struct {
	Environment    string            `yaml:"environment"`
	OTLPEndpoint   string            `yaml:"otlp_endpoint"`
	OTLPInsecure   bool              `yaml:"otlp_insecure"`
	OTLPHeaders    map[string]string `yaml:"otlp_headers"`
	MetricsEnabled bool              `yaml:"metrics_enabled"`
	TracesEnabled  bool              `yaml:"traces_enabled"`
}

// Load reads and validates the YAML configuration at path.
func Load(path string) (Config, error) {
	cfg := Config{
		ServerID: "gatekeeper-1",
		Listen:   ":8443",
		Storage: StorageConfig{
			ChangeRequestDBPath: "./data/changerequests",
			AnchorDBPath:        "./data/anchors.db",
			VetoDBPath:          "./data/veto",
		},
		Audit: AuditConfig{
			LogPath:              "./data/audit.jsonl",
			RotationIntervalDays: 30,
		},
		Enforcement: EnforcementConfig{
			LogPath:    "./data/enforcement.log",
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 90,
		},
		Timestamping: TimestampingConfig{
			RateLimitPerSec: 2,
			Burst:           4,
			AnchorInterval:  24 * time.Hour,
		},
		Veto: VetoConfig{
			DenominatorMode: "participation",
		},
		Observability: ObservabilityConfig{
			Environment: "production",
		},
	}

	if path == "" {
		return Config{}, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.ServerID == "" {
		return fmt.Errorf("server_id is required")
	}
	if cfg.Storage.ChangeRequestDBPath == "" {
		return fmt.Errorf("storage.change_request_db_path is required")
	}
	if cfg.Storage.EconNodeDSN == "" {
		return fmt.Errorf("storage.econ_node_dsn is required")
	}
	if cfg.Audit.LogPath == "" {
		return fmt.Errorf("audit.log_path is required")
	}
	if cfg.Audit.RotationIntervalDays <= 0 {
		return fmt.Errorf("audit.rotation_interval_days must be positive")
	}
	if cfg.Enforcement.Enabled && cfg.Enforcement.LogPath == "" {
		return fmt.Errorf("enforcement.log_path is required when enforcement.enabled is true")
	}
	if cfg.Timestamping.URL == "" {
		return fmt.Errorf("timestamping.url is required")
	}
	// Resolved per spec.md §9's Open Question: participation-weighted
	// denominators only. Reject any other value at load time rather than
	// silently falling back, so a misconfigured denominator never reaches
	// the veto engine.
	if cfg.Veto.DenominatorMode != "participation" {
		return fmt.Errorf("veto.denominator_mode must be %q", "participation")
	}
	if cfg.Admin.JWTSecret == "" {
		return fmt.Errorf("admin.jwt_secret is required")
	}
	return nil
}
