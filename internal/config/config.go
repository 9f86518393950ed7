package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	DataDir       string           `json:"data_dir"`
	LogConfig     logger.LogConfig `json:"log_config"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	SnapshotCron  string           `json:"snapshot_cron"`
	AI            AIConfig         `json:"ai"`
	Retrieval     RetrievalConfig  `json:"retrieval"`
}

type AIConfig struct {
	Provider       string `json:"provider"`
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	EmbedModel     string `json:"embed_model"`
	Timeout        int    `json:"timeout"`
	EmbedCacheSize int    `json:"embed_cache_size"`
	EmbedCacheTTL  int    `json:"embed_cache_ttl"`
}

type RetrievalConfig struct {
	TopK            int     `json:"top_k"`
	MinSimilarity   float64 `json:"min_similarity"`
	MMRLambda       float64 `json:"mmr_lambda"`
	ChunkChars      int     `json:"chunk_chars"`
	SentenceOverlap int     `json:"sentence_overlap"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.SnapshotCron == "" {
		cfg.SnapshotCron = "*/5 * * * *"
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-2.0-flash"
	}
	if cfg.AI.EmbedModel == "" {
		cfg.AI.EmbedModel = "text-embedding-004"
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 30
	}
	if cfg.AI.EmbedCacheSize == 0 {
		cfg.AI.EmbedCacheSize = 2048
	}
	if cfg.AI.EmbedCacheTTL == 0 {
		cfg.AI.EmbedCacheTTL = 3600
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 6
	}
	if cfg.Retrieval.MinSimilarity == 0 {
		cfg.Retrieval.MinSimilarity = 0.25
	}
	if cfg.Retrieval.MMRLambda == 0 {
		cfg.Retrieval.MMRLambda = 0.7
	}
	if cfg.Retrieval.ChunkChars == 0 {
		cfg.Retrieval.ChunkChars = 400
	}
	if cfg.Retrieval.SentenceOverlap == 0 {
		cfg.Retrieval.SentenceOverlap = 1
	}
	return &cfg, nil
}
