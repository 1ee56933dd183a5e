package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"engined/internal/catalog"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`

	// Cache TTLs in seconds: domain-scoped sessions run longer, so their
	// entries live longer before revalidation.
	GenericTTLSec int `json:"generic_ttl_sec" yaml:"generic_ttl_sec" toml:"generic_ttl_sec"`
	DomainTTLSec  int `json:"domain_ttl_sec" yaml:"domain_ttl_sec" toml:"domain_ttl_sec"`

	LockWaitSec      int `json:"lock_wait_sec" yaml:"lock_wait_sec" toml:"lock_wait_sec"`
	ProtectSec       int `json:"protect_sec" yaml:"protect_sec" toml:"protect_sec"`
	SettleMs         int `json:"settle_ms" yaml:"settle_ms" toml:"settle_ms"`
	PacingMs         int `json:"pacing_ms" yaml:"pacing_ms" toml:"pacing_ms"`
	PressurePacingMs int `json:"pressure_pacing_ms" yaml:"pressure_pacing_ms" toml:"pressure_pacing_ms"`

	MaxConcurrency int    `json:"max_concurrency" yaml:"max_concurrency" toml:"max_concurrency"`
	LRUPath        string `json:"lru_path" yaml:"lru_path" toml:"lru_path"`

	LlamaCtx     int `json:"llama_ctx" yaml:"llama_ctx" toml:"llama_ctx"`
	LlamaThreads int `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads"`

	// Memory-pressure thresholds per tier in MB; a batch whose highest
	// tier exceeds its threshold is serialized.
	MemThresholdMB map[string]int `json:"mem_threshold_mb" yaml:"mem_threshold_mb" toml:"mem_threshold_mb"`

	// Preference orderings consulted before the size heuristic.
	Preferences catalog.Preferences `json:"preferences" yaml:"preferences" toml:"preferences"`

	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	LogLevel    string   `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
