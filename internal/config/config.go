// Package config loads server and pipeline configuration.
//
// Precedence, lowest to highest: built-in defaults (Default), an optional
// YAML file, then ASRGOT_* environment variables. Per-query parameters are
// layered on top of the Pipeline section by package pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/asrgot/internal/apperr"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Sessions SessionConfig  `yaml:"sessions"`
	History  HistoryConfig  `yaml:"history"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServerConfig controls the MCP adapter and logging.
type ServerConfig struct {
	Name     string `yaml:"name" validate:"required"`
	LogMode  string `yaml:"log_mode" validate:"oneof=dev prod"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// SessionConfig bounds the in-memory session registry.
type SessionConfig struct {
	Capacity      int           `yaml:"capacity" validate:"gte=1"`
	TTL           time.Duration `yaml:"ttl" validate:"gte=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"gte=0"`
}

// HistoryConfig controls the sqlite run ledger.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn" validate:"required_if=Enabled true"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Namespace  string `yaml:"namespace" validate:"required"`
	ListenAddr string `yaml:"listen_addr"`
}

// PipelineConfig holds defaults that per-query parameters may override.
type PipelineConfig struct {
	// Seed fixes the random source; 0 seeds from the clock.
	Seed                  uint64   `yaml:"seed"`
	HypothesesMin         int      `yaml:"hypotheses_min" validate:"gte=1"`
	HypothesesMax         int      `yaml:"hypotheses_max" validate:"gtefield=HypothesesMin"`
	EvidenceMaxIterations int      `yaml:"evidence_max_iterations" validate:"gte=0"`
	PruningThreshold      float64  `yaml:"pruning_threshold" validate:"gte=0,lte=1"`
	ImpactThreshold       float64  `yaml:"impact_threshold" validate:"gte=0,lte=1"`
	MergingThreshold      float64  `yaml:"merging_threshold" validate:"gte=0,lte=1"`
	MinConfidence         float64  `yaml:"min_confidence" validate:"gte=0,lte=1"`
	MinImpact             float64  `yaml:"min_impact" validate:"gte=0,lte=1"`
	BiasDetector          string   `yaml:"bias_detector" validate:"oneof=none heuristic"`
	Disciplines           []string `yaml:"disciplines"`
	HypothesisDisciplines []string `yaml:"hypothesis_disciplines"`
}

// ─── Defaults ────────────────────────────────────────────────────────────────

// DefaultDisciplines seed the root node when a query names none.
var DefaultDisciplines = []string{
	"skin_immunology", "dermatology", "cutaneous_malignancies", "ctcl",
	"chromosomal_instability", "skin_microbiome", "cancer_progression",
	"therapeutic_targets", "genomics", "molecular_biology",
	"machine_learning", "biomedical_llms",
}

// DefaultHypothesisDisciplines is the tag pool hypotheses draw from.
var DefaultHypothesisDisciplines = []string{
	"skin_immunology", "dermatology", "molecular_biology",
	"machine_learning", "genomics", "microbiome",
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Name:     "asrgot",
			LogMode:  "prod",
			LogLevel: "info",
		},
		Sessions: SessionConfig{
			Capacity:      128,
			TTL:           time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		History: HistoryConfig{
			Enabled: true,
			DSN:     "file:asrgot-history?mode=memory&cache=shared",
		},
		Metrics: MetricsConfig{
			Namespace: "asrgot",
		},
		Pipeline: PipelineConfig{
			HypothesesMin:         3,
			HypothesesMax:         5,
			EvidenceMaxIterations: 5,
			PruningThreshold:      0.2,
			ImpactThreshold:       0.3,
			MergingThreshold:      0.8,
			MinConfidence:         0.6,
			MinImpact:             0.5,
			BiasDetector:          "none",
			Disciplines:           append([]string(nil), DefaultDisciplines...),
			HypothesisDisciplines: append([]string(nil), DefaultHypothesisDisciplines...),
		},
	}
}

// ─── Loading ─────────────────────────────────────────────────────────────────

// readFile is a package-level var to allow test injection.
var readFile = os.ReadFile

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := readFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.LogMode = getEnv("ASRGOT_LOG_MODE", c.Server.LogMode)
	c.Server.LogLevel = getEnv("ASRGOT_LOG_LEVEL", c.Server.LogLevel)
	c.Sessions.Capacity = getEnvInt("ASRGOT_SESSION_CAPACITY", c.Sessions.Capacity)
	c.Sessions.TTL = getEnvDuration("ASRGOT_SESSION_TTL", c.Sessions.TTL)
	c.History.Enabled = getEnvBool("ASRGOT_HISTORY_ENABLED", c.History.Enabled)
	c.History.DSN = getEnv("ASRGOT_HISTORY_DSN", c.History.DSN)
	c.Metrics.ListenAddr = getEnv("ASRGOT_METRICS_ADDR", c.Metrics.ListenAddr)
	c.Pipeline.Seed = getEnvUint64("ASRGOT_SEED", c.Pipeline.Seed)
	c.Pipeline.BiasDetector = getEnv("ASRGOT_BIAS_DETECTOR", c.Pipeline.BiasDetector)
}

// ─── Validation ──────────────────────────────────────────────────────────────

var validate = validator.New()

// Validate checks every section's constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("config").WithCause(err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return apperr.Validation("config: %s", strings.Join(msgs, "; "))
}

// ─── Environment helpers ─────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := cast.ToIntE(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvUint64(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if i, err := cast.ToUint64E(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := cast.ToBoolE(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := cast.ToDurationE(val); err == nil {
			return d
		}
	}
	return defaultVal
}
