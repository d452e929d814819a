package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"finsight/internal/domain"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	Concurrency       int     `yaml:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	BatchSize int                   `yaml:"batch_size"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures the character-window chunker.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// IndexConfig controls where a saved index lives and its metadata format.
type IndexConfig struct {
	Dir      string `yaml:"dir"`
	Metadata string `yaml:"metadata"`
	Autosave bool   `yaml:"autosave"`
}

// GroqConfig configures the chat model used for answers.
type GroqConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	Temperature       float32 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// AnswerConfig selects how answers are produced: "auto" uses Groq when a key
// is present and local excerpts otherwise.
type AnswerConfig struct {
	Type          string     `yaml:"type"`
	TopK          int        `yaml:"top_k"`
	HistoryLimit  int        `yaml:"history_limit"`
	HistoryWindow int        `yaml:"history_window"`
	SummaryLength int        `yaml:"summary_sentences"`
	Groq          GroqConfig `yaml:"groq"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int    `yaml:"port"`
	UploadDir   string `yaml:"upload_dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
	StaticDir   string `yaml:"static_dir"`
}

// WatchConfig configures the inbox watcher. An empty Dir disables it.
type WatchConfig struct {
	Dir            string `yaml:"dir"`
	DebounceMillis int    `yaml:"debounce_ms"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunker  ChunkerConfig  `yaml:"chunker"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Index    IndexConfig    `yaml:"index"`
	Answer   AnswerConfig   `yaml:"answer"`
	Server   ServerConfig   `yaml:"server"`
	Watch    WatchConfig    `yaml:"watch"`
	Log      LogConfig      `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnvOverrides(cfg)
			return cfg, cfg.Validate()
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, cfg.Validate()
}

// LoadDefault tries ./config.yaml first, then ~/.config/finsight/config.yaml.
// If neither exists, it writes defaults to ~/.config/finsight/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnvOverrides(cfg)
	return cfg, userPath, cfg.Validate()
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the settings the retrieval core depends on.
func (c *AppConfig) Validate() error {
	switch {
	case c.Chunker.ChunkSize <= 0:
		return domain.NewValidationError("chunker.chunk_size", c.Chunker.ChunkSize, "must be positive")
	case c.Chunker.Overlap <= 0 || c.Chunker.Overlap >= c.Chunker.ChunkSize:
		return domain.NewValidationError("chunker.overlap", c.Chunker.Overlap, "must satisfy 0 < overlap < chunk_size")
	case c.Embedder.Dimension <= 0:
		return domain.NewValidationError("embedder.dimension", c.Embedder.Dimension, "must be positive")
	case c.Answer.TopK <= 0:
		return domain.NewValidationError("answer.top_k", c.Answer.TopK, "must be positive")
	case c.Index.Metadata != "json" && c.Index.Metadata != "sqlite":
		return domain.NewValidationError("index.metadata", c.Index.Metadata, "must be json or sqlite")
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "finsight", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Chunker:  ChunkerConfig{ChunkSize: 3600, Overlap: 800},
		Embedder: EmbedderConfig{Type: "hashing", Dimension: 384, BatchSize: 64},
		Index:    IndexConfig{Dir: "data/index", Metadata: "json"},
		Answer: AnswerConfig{
			Type:          "auto",
			TopK:          6,
			HistoryLimit:  20,
			HistoryWindow: 10,
			SummaryLength: 3,
			Groq: GroqConfig{
				BaseURL:     "https://api.groq.com/openai/v1",
				APIKeyEnv:   "GROQ_API_KEY",
				Model:       "llama-3.3-70b-versatile",
				Temperature: 0.3,
				MaxTokens:   1000,
				TimeoutSecs: 30,
			},
		},
		Server: ServerConfig{Port: 3000, UploadDir: "uploads", MaxUploadMB: 50},
		Watch:  WatchConfig{DebounceMillis: 500},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 64
	}
	if cfg.Index.Metadata == "" {
		cfg.Index.Metadata = "json"
	}
	if cfg.Answer.Type == "" {
		cfg.Answer.Type = "auto"
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.Concurrency == 0 {
			cfg.Embedder.OpenAI.Concurrency = 4
		}
		if cfg.Embedder.OpenAI.MaxRetries == 0 {
			cfg.Embedder.OpenAI.MaxRetries = 3
		}
	}
}

// applyEnvOverrides lets deployment environments override a few settings
// without editing YAML.
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FINSIGHT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FINSIGHT_INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
}
