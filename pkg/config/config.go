package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Workspace   string            `json:"workspace" env:"COCO_WORKSPACE"`
	Logging     LoggingConfig     `json:"logging"`
	Memory      MemoryConfig      `json:"memory"`
	Pressure    PressureConfig    `json:"pressure"`
	Facts       FactsConfig       `json:"facts"`
	Documents   DocumentsConfig   `json:"documents"`
	Maintenance MaintenanceConfig `json:"maintenance"`
	mu          sync.RWMutex
}

type LoggingConfig struct {
	Level  string `json:"level" env:"COCO_LOGGING_LEVEL"`
	Pretty bool   `json:"pretty" env:"COCO_LOGGING_PRETTY"`
}

// MemoryConfig holds the episodic buffer and summarization thresholds.
type MemoryConfig struct {
	BufferTruncateAt         int     `json:"buffer_truncate_at" env:"COCO_MEMORY_BUFFER_TRUNCATE_AT"`
	SummaryWindowSize        int     `json:"summary_window_size" env:"COCO_MEMORY_SUMMARY_WINDOW_SIZE"`
	SummaryOverlap           int     `json:"summary_overlap" env:"COCO_MEMORY_SUMMARY_OVERLAP"`
	MaxSummariesInMemory     int     `json:"max_summaries_in_memory" env:"COCO_MEMORY_MAX_SUMMARIES_IN_MEMORY"`
	MaxSummariesInContext    int     `json:"max_summaries_in_context" env:"COCO_MEMORY_MAX_SUMMARIES_IN_CONTEXT"`
	GistCreationThreshold    int     `json:"gist_creation_threshold" env:"COCO_MEMORY_GIST_CREATION_THRESHOLD"`
	GistImportanceThreshold  float64 `json:"gist_importance_threshold" env:"COCO_MEMORY_GIST_IMPORTANCE_THRESHOLD"`
	ProactiveInterval        int     `json:"proactive_interval" env:"COCO_MEMORY_PROACTIVE_INTERVAL"`
	ProactiveMinBuffer       int     `json:"proactive_min_buffer" env:"COCO_MEMORY_PROACTIVE_MIN_BUFFER"`
	EpisodeRetentionDays     int     `json:"episode_retention_days" env:"COCO_MEMORY_EPISODE_RETENTION_DAYS"`
	TerminalCompressionLevel int     `json:"terminal_compression_level" env:"COCO_MEMORY_TERMINAL_COMPRESSION_LEVEL"`
}

// PressureConfig holds context-window accounting knobs.
type PressureConfig struct {
	ContextWindowLimit int `json:"context_window_limit" env:"COCO_PRESSURE_CONTEXT_WINDOW_LIMIT"`
}

type FactsConfig struct {
	AutoInjectConfidence float64 `json:"auto_inject_confidence" env:"COCO_FACTS_AUTO_INJECT_CONFIDENCE"`
	SearchLimit          int     `json:"search_limit" env:"COCO_FACTS_SEARCH_LIMIT"`
}

type DocumentsConfig struct {
	SmallTokenThreshold int `json:"small_token_threshold" env:"COCO_DOCUMENTS_SMALL_TOKEN_THRESHOLD"`
	RelevantChunksK     int `json:"relevant_chunks_k" env:"COCO_DOCUMENTS_RELEVANT_CHUNKS_K"`
}

type MaintenanceConfig struct {
	Enabled  bool   `json:"enabled" env:"COCO_MAINTENANCE_ENABLED"`
	Schedule string `json:"schedule" env:"COCO_MAINTENANCE_SCHEDULE"`
}

func DefaultConfig() *Config {
	return &Config{
		Workspace: "~/.coco/workspace",
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
		Memory: MemoryConfig{
			BufferTruncateAt:         120,
			SummaryWindowSize:        25,
			SummaryOverlap:           5,
			MaxSummariesInMemory:     50,
			MaxSummariesInContext:    3,
			GistCreationThreshold:    25,
			GistImportanceThreshold:  0.5,
			ProactiveInterval:        10,
			ProactiveMinBuffer:       20,
			EpisodeRetentionDays:     90,
			TerminalCompressionLevel: 2,
		},
		Pressure: PressureConfig{
			ContextWindowLimit: 200000,
		},
		Facts: FactsConfig{
			AutoInjectConfidence: 0.6,
			SearchLimit:          20,
		},
		Documents: DocumentsConfig{
			SmallTokenThreshold: 10000,
			RelevantChunksK:     3,
		},
		Maintenance: MaintenanceConfig{
			Enabled:  false,
			Schedule: "0 3 * * *",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: config file not found at %s, using defaults\n", path)
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Workspace)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
