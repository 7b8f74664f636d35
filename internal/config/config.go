// File path: internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config carries the application-level settings for the report service.
// Values merge in order: defaults, optional JSON file pointed to by
// STORESENSE_CONFIG_FILE, then environment variables.
type Config struct {
	ListenAddr string `json:"listen_addr"`

	// CorpusRoot contains one sub-directory per report mode plus a
	// "shared" directory for the cross-mode segment corpus.
	CorpusRoot string `json:"corpus_root"`

	StatsDBPath string `json:"stats_db_path"`

	TopK     int `json:"top_k"`
	MaxPairs int `json:"max_pairs"`

	MaxOutputTokens  int           `json:"max_output_tokens"`
	GenerateAttempts int           `json:"generate_attempts"`
	GenerateBackoff  time.Duration `json:"-"`
	GenerateBackoffS string        `json:"generate_backoff"`

	TrendEndpoint     string `json:"trend_endpoint"`
	TrendClientID     string `json:"trend_client_id"`
	TrendClientSecret string `json:"trend_client_secret"`
}

// Default returns the baseline configuration used when nothing overrides it.
func Default() Config {
	return Config{
		ListenAddr:       ":8082",
		CorpusRoot:       filepath.Join("data", "vector_dbs"),
		StatsDBPath:      filepath.Join("data", "stats.db"),
		TopK:             5,
		MaxPairs:         5,
		MaxOutputTokens:  500,
		GenerateAttempts: 2,
		GenerateBackoff:  2 * time.Second,
	}
}

// Merge overlays non-zero fields from the override onto the receiver.
func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(override.ListenAddr) != "" {
		result.ListenAddr = strings.TrimSpace(override.ListenAddr)
	}
	if strings.TrimSpace(override.CorpusRoot) != "" {
		result.CorpusRoot = strings.TrimSpace(override.CorpusRoot)
	}
	if strings.TrimSpace(override.StatsDBPath) != "" {
		result.StatsDBPath = strings.TrimSpace(override.StatsDBPath)
	}
	if override.TopK > 0 {
		result.TopK = override.TopK
	}
	if override.MaxPairs > 0 {
		result.MaxPairs = override.MaxPairs
	}
	if override.MaxOutputTokens > 0 {
		result.MaxOutputTokens = override.MaxOutputTokens
	}
	if override.GenerateAttempts > 0 {
		result.GenerateAttempts = override.GenerateAttempts
	}
	if override.GenerateBackoff > 0 {
		result.GenerateBackoff = override.GenerateBackoff
	}
	if strings.TrimSpace(override.GenerateBackoffS) != "" {
		result.GenerateBackoffS = strings.TrimSpace(override.GenerateBackoffS)
	}
	if strings.TrimSpace(override.TrendEndpoint) != "" {
		result.TrendEndpoint = strings.TrimSpace(override.TrendEndpoint)
	}
	if strings.TrimSpace(override.TrendClientID) != "" {
		result.TrendClientID = override.TrendClientID
	}
	if strings.TrimSpace(override.TrendClientSecret) != "" {
		result.TrendClientSecret = override.TrendClientSecret
	}
	return result
}

// Load assembles the effective configuration from defaults, the optional
// config file and the environment.
func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("STORESENSE_CONFIG_FILE")); path != "" {
		fileCfg, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := fromEnv()
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.Merge(envCfg)
	if cfg.GenerateBackoffS != "" {
		parsed, err := time.ParseDuration(cfg.GenerateBackoffS)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid generate_backoff %q: %w", cfg.GenerateBackoffS, err)
		}
		cfg.GenerateBackoff = parsed
	}
	return cfg, nil
}

func loadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func fromEnv() (Config, error) {
	cfg := Config{
		ListenAddr:        os.Getenv("STORESENSE_ADDR"),
		CorpusRoot:        os.Getenv("STORESENSE_CORPUS_ROOT"),
		StatsDBPath:       os.Getenv("STORESENSE_STATS_DB"),
		GenerateBackoffS:  os.Getenv("STORESENSE_GENERATE_BACKOFF"),
		TrendEndpoint:     os.Getenv("TREND_API_ENDPOINT"),
		TrendClientID:     os.Getenv("TREND_CLIENT_ID"),
		TrendClientSecret: os.Getenv("TREND_CLIENT_SECRET"),
	}
	for env, target := range map[string]*int{
		"STORESENSE_TOP_K":             &cfg.TopK,
		"STORESENSE_MAX_PAIRS":         &cfg.MaxPairs,
		"STORESENSE_MAX_OUTPUT_TOKENS": &cfg.MaxOutputTokens,
		"STORESENSE_GENERATE_ATTEMPTS": &cfg.GenerateAttempts,
	} {
		raw := strings.TrimSpace(os.Getenv(env))
		if raw == "" {
			continue
		}
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid %s %q: %w", env, raw, err)
		}
		*target = parsed
	}
	return cfg, nil
}
