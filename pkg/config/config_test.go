package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_Thresholds(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Memory.BufferTruncateAt != 120 {
		t.Errorf("BufferTruncateAt: got %d, want 120", cfg.Memory.BufferTruncateAt)
	}
	if cfg.Memory.SummaryWindowSize != 25 {
		t.Errorf("SummaryWindowSize: got %d, want 25", cfg.Memory.SummaryWindowSize)
	}
	if cfg.Memory.SummaryOverlap != 5 {
		t.Errorf("SummaryOverlap: got %d, want 5", cfg.Memory.SummaryOverlap)
	}
	if cfg.Pressure.ContextWindowLimit != 200000 {
		t.Errorf("ContextWindowLimit: got %d, want 200000", cfg.Pressure.ContextWindowLimit)
	}
	if cfg.Facts.AutoInjectConfidence != 0.6 {
		t.Errorf("AutoInjectConfidence: got %v, want 0.6", cfg.Facts.AutoInjectConfidence)
	}
}

func TestConfig_UnmarshalOverrides(t *testing.T) {
	jsonData := `{
		"memory": {"buffer_truncate_at": 60, "summary_window_size": 10},
		"pressure": {"context_window_limit": 100000}
	}`

	cfg := DefaultConfig()
	if err := json.Unmarshal([]byte(jsonData), cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if cfg.Memory.BufferTruncateAt != 60 {
		t.Errorf("BufferTruncateAt: got %d, want 60", cfg.Memory.BufferTruncateAt)
	}
	if cfg.Memory.SummaryWindowSize != 10 {
		t.Errorf("SummaryWindowSize: got %d, want 10", cfg.Memory.SummaryWindowSize)
	}
	// Untouched fields keep defaults
	if cfg.Memory.SummaryOverlap != 5 {
		t.Errorf("SummaryOverlap: got %d, want 5", cfg.Memory.SummaryOverlap)
	}
	if cfg.Pressure.ContextWindowLimit != 100000 {
		t.Errorf("ContextWindowLimit: got %d, want 100000", cfg.Pressure.ContextWindowLimit)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Memory.BufferTruncateAt != 120 {
		t.Errorf("expected defaults, got BufferTruncateAt=%d", cfg.Memory.BufferTruncateAt)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	os.Setenv("COCO_MEMORY_BUFFER_TRUNCATE_AT", "42")
	defer os.Unsetenv("COCO_MEMORY_BUFFER_TRUNCATE_AT")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Memory.BufferTruncateAt != 42 {
		t.Errorf("env override: got %d, want 42", cfg.Memory.BufferTruncateAt)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	cfg.Memory.GistCreationThreshold = 7
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Memory.GistCreationThreshold != 7 {
		t.Errorf("GistCreationThreshold: got %d, want 7", loaded.Memory.GistCreationThreshold)
	}
}
