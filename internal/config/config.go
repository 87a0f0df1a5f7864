package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// OpenAIConfig holds configuration for an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
}

// GeminiConfig holds configuration for the Gemini API.
type GeminiConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string        `yaml:"type" validate:"oneof=hashing openai gemini"`
	Dimension int           `yaml:"dimension" validate:"gte=0"`
	OpenAI    *OpenAIConfig `yaml:"openai,omitempty"`
	Gemini    *GeminiConfig `yaml:"gemini,omitempty"`
}

// GeneratorConfig selects the text generation backend used for summaries, redlines and answers.
type GeneratorConfig struct {
	Type   string        `yaml:"type" validate:"oneof=none openai gemini"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
	Gemini *GeminiConfig `yaml:"gemini,omitempty"`
}

// ClassifierConfig configures clause classification.
type ClassifierConfig struct {
	Type      string  `yaml:"type" validate:"oneof=keyword"`
	Threshold float64 `yaml:"threshold" validate:"gt=0,lte=1"`
}

// RiskConfig configures the redline gate.
type RiskConfig struct {
	RedlineThreshold int `yaml:"redline_threshold" validate:"gte=0,lte=100"`
}

// PipelineConfig configures the batch pipeline.
type PipelineConfig struct {
	PreviewCap  int `yaml:"preview_cap" validate:"gt=0"`
	ReportCap   int `yaml:"report_cap" validate:"gt=0"`
	Concurrency int `yaml:"concurrency" validate:"gt=0"`
}

// ChunkerConfig configures how tagged clauses are split into retrieval chunks.
type ChunkerConfig struct {
	Size    int `yaml:"size" validate:"gt=0"`
	Overlap int `yaml:"overlap" validate:"gte=0,ltfield=Size"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL              string `yaml:"url" validate:"required"`
	APIKey           string `yaml:"api_key"`
	CollectionPrefix string `yaml:"collection_prefix"`
	TimeoutSecs      int    `yaml:"timeout_secs"`
}

// IndexConfig selects and configures the session index backend.
type IndexConfig struct {
	Type    string        `yaml:"type" validate:"oneof=chromem memory qdrant"`
	BaseDir string        `yaml:"base_dir"`
	Qdrant  *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QueryConfig configures retrieval.
type QueryConfig struct {
	TopK int `yaml:"top_k" validate:"gt=0"`
}

// BatchConfig configures how long tagged batches stay addressable by handle.
type BatchConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" validate:"gt=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	File       string `yaml:"file"`
	Production bool   `yaml:"production"`
}

// MetricsConfig configures the Prometheus textfile the CLI writes on exit.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile" validate:"required_if=Enabled true"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Risk       RiskConfig       `yaml:"risk"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Index      IndexConfig      `yaml:"index"`
	Query      QueryConfig      `yaml:"query"`
	Batches    BatchConfig      `yaml:"batches"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults for missing values and validates the result.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyConfigDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func Validate(cfg *AppConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadDefault tries ./clausewise.yaml first, then ~/.config/clausewise/config.yaml.
// If neither exists, it writes defaults to ~/.config/clausewise/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "clausewise.yaml"
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
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
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

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "clausewise", "config.yaml"), nil
}

// Default returns the built-in configuration: offline embedder, no generator, on-disk index.
func Default() *AppConfig {
	cfg := &AppConfig{
		Embedder:   EmbedderConfig{Type: "hashing"},
		Generator:  GeneratorConfig{Type: "none"},
		Classifier: ClassifierConfig{Type: "keyword"},
		Index:      IndexConfig{Type: "chromem"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Type == "hashing" && cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 512
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "none"
	}
	if cfg.Classifier.Type == "" {
		cfg.Classifier.Type = "keyword"
	}
	if cfg.Classifier.Threshold == 0 {
		cfg.Classifier.Threshold = 0.5
	}
	if cfg.Risk.RedlineThreshold == 0 {
		cfg.Risk.RedlineThreshold = 70
	}
	if cfg.Pipeline.PreviewCap == 0 {
		cfg.Pipeline.PreviewCap = 20
	}
	if cfg.Pipeline.ReportCap == 0 {
		cfg.Pipeline.ReportCap = 10
	}
	if cfg.Pipeline.Concurrency == 0 {
		cfg.Pipeline.Concurrency = 4
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 512
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 64
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "chromem"
	}
	if cfg.Index.BaseDir == "" {
		cfg.Index.BaseDir = "chroma_store"
	}
	if cfg.Index.Type == "qdrant" && cfg.Index.Qdrant != nil {
		if cfg.Index.Qdrant.CollectionPrefix == "" {
			cfg.Index.Qdrant.CollectionPrefix = "clausewise_"
		}
		if cfg.Index.Qdrant.TimeoutSecs == 0 {
			cfg.Index.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 3
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Textfile == "" {
		cfg.Metrics.Textfile = "clausewise.prom"
	}
	if cfg.Batches.TTLMinutes == 0 {
		cfg.Batches.TTLMinutes = 60
	}
	applyOpenAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small")
	applyOpenAIDefaults(cfg.Generator.OpenAI, "gpt-4o-mini")
	applyGeminiDefaults(cfg.Embedder.Gemini, "text-embedding-004")
	applyGeminiDefaults(cfg.Generator.Gemini, "gemini-2.5-flash")
}

func applyOpenAIDefaults(c *OpenAIConfig, model string) {
	if c == nil {
		return
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 60
	}
}

func applyGeminiDefaults(c *GeminiConfig, model string) {
	if c == nil {
		return
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "GOOGLE_GEMINI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
}
