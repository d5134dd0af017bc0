package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HendryAvila/asrgot/internal/apperr"
)

// --- Default ---

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Pipeline.MergingThreshold != 0.8 {
		t.Errorf("MergingThreshold = %v, want 0.8", cfg.Pipeline.MergingThreshold)
	}
	if len(cfg.Pipeline.Disciplines) != 12 {
		t.Errorf("Disciplines = %d entries, want 12", len(cfg.Pipeline.Disciplines))
	}
}

func TestDefault_DisciplinesAreCopies(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.Disciplines[0] = "mutated"
	if DefaultDisciplines[0] == "mutated" {
		t.Fatal("Default shares the package-level discipline slice")
	}
}

// --- Load ---

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sessions.Capacity != 128 {
		t.Errorf("Capacity = %d, want 128", cfg.Sessions.Capacity)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asrgot.yaml")
	content := `
sessions:
  capacity: 4
  ttl: 90s
pipeline:
  merging_threshold: 0.9
  bias_detector: heuristic
  disciplines: [botany, biochemistry]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sessions.Capacity != 4 {
		t.Errorf("Capacity = %d, want 4", cfg.Sessions.Capacity)
	}
	if cfg.Sessions.TTL != 90*time.Second {
		t.Errorf("TTL = %v, want 90s", cfg.Sessions.TTL)
	}
	if cfg.Pipeline.MergingThreshold != 0.9 {
		t.Errorf("MergingThreshold = %v, want 0.9", cfg.Pipeline.MergingThreshold)
	}
	if cfg.Pipeline.BiasDetector != "heuristic" {
		t.Errorf("BiasDetector = %q, want heuristic", cfg.Pipeline.BiasDetector)
	}
	if got := cfg.Pipeline.Disciplines; len(got) != 2 || got[0] != "botany" {
		t.Errorf("Disciplines = %v", got)
	}
	// Untouched keys keep their defaults.
	if cfg.Pipeline.PruningThreshold != 0.2 {
		t.Errorf("PruningThreshold = %v, want 0.2", cfg.Pipeline.PruningThreshold)
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("ASRGOT_SESSION_CAPACITY", "7")
	t.Setenv("ASRGOT_SESSION_TTL", "2m")
	t.Setenv("ASRGOT_HISTORY_ENABLED", "false")
	t.Setenv("ASRGOT_SEED", "42")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sessions.Capacity != 7 {
		t.Errorf("Capacity = %d, want 7", cfg.Sessions.Capacity)
	}
	if cfg.Sessions.TTL != 2*time.Minute {
		t.Errorf("TTL = %v, want 2m", cfg.Sessions.TTL)
	}
	if cfg.History.Enabled {
		t.Error("History.Enabled = true, want false")
	}
	if cfg.Pipeline.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Pipeline.Seed)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist in chain", err)
	}
}

func TestLoad_ReadFileInjection(t *testing.T) {
	orig := readFile
	t.Cleanup(func() { readFile = orig })
	readFile = func(string) ([]byte, error) {
		return []byte("server: [not, a, map]"), nil
	}

	if _, err := Load("ignored.yaml"); err == nil {
		t.Fatal("expected parse error")
	}
}

// --- Validate ---

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capacity", func(c *Config) { c.Sessions.Capacity = 0 }},
		{"threshold above one", func(c *Config) { c.Pipeline.PruningThreshold = 1.5 }},
		{"max below min", func(c *Config) { c.Pipeline.HypothesesMax = 1 }},
		{"unknown log mode", func(c *Config) { c.Server.LogMode = "verbose" }},
		{"unknown bias detector", func(c *Config) { c.Pipeline.BiasDetector = "oracle" }},
		{"history without dsn", func(c *Config) { c.History.DSN = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !apperr.IsValidation(err) {
				t.Errorf("error kind = %s, want validation", apperr.KindOf(err))
			}
		})
	}
}
