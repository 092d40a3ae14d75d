package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LLMConfig points at one remote model endpoint.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai" or "ollama"
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend"` // "postgres" or "chromem"
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

type RAGConfig struct {
	ChunkSize           int     `yaml:"chunk_size"`
	ChunkOverlap        int     `yaml:"chunk_overlap"`
	TopK                int     `yaml:"top_k"`
	MinSimilarity       float64 `yaml:"min_similarity"`
	CandidateMultiplier int     `yaml:"candidate_multiplier"`
	RerankTimeoutMs     int     `yaml:"rerank_timeout_ms"`
}

type RateLimitConfig struct {
	Enabled   bool `yaml:"enabled"`
	PerMinute int  `yaml:"per_minute"`
}

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	EmbedLLM  LLMConfig       `yaml:"embedding"`
	GenLLM    LLMConfig       `yaml:"generation"`
	VisionLLM LLMConfig       `yaml:"vision"`
	RAG       RAGConfig       `yaml:"rag"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnv lets secrets come from the environment instead of the yaml file.
func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("OPENROUTER_KEY"); v != "" {
		if c.EmbedLLM.Key == "" {
			c.EmbedLLM.Key = v
		}
		if c.GenLLM.Key == "" {
			c.GenLLM.Key = v
		}
		if c.VisionLLM.Key == "" {
			c.VisionLLM.Key = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 700
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 100
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = 5
	}
	if c.RAG.CandidateMultiplier == 0 {
		c.RAG.CandidateMultiplier = 3
	}
	if c.RAG.RerankTimeoutMs == 0 {
		c.RAG.RerankTimeoutMs = 2000
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "postgres"
	}
	if c.Store.Collection == "" {
		c.Store.Collection = "knowledge_chunks"
	}
	if c.RateLimit.PerMinute == 0 {
		c.RateLimit.PerMinute = 60
	}
}
