// Package config holds the process-wide configuration for the tutor core.
// A Config is loaded once at startup and passed into constructors; no package
// keeps client or connection state of its own.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration tree. Zero values are filled in by
// Default(), so a partial YAML file only needs to override what it changes.
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Vision    VisionConfig    `yaml:"vision"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	OCR       OCRConfig       `yaml:"ocr"`
	Scope     ScopeConfig     `yaml:"scope"`
	Prompt    PromptConfig    `yaml:"prompt"`
}

// IndexConfig locates the persistent vector index on the filesystem.
type IndexConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// EmbeddingConfig configures the embedding service client. The model must be
// identical between ingestion and querying; mixing embedding spaces silently
// degrades retrieval quality.
type EmbeddingConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BatchSize      int    `yaml:"batch_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ChatConfig configures the answer-generation model. BaseURL may point at any
// OpenAI-compatible endpoint; the vendor is a deployment parameter.
type ChatConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// VisionConfig configures the vision model used for page and attachment
// transcription.
type VisionConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig tunes semantic search. MaxDistance is the relevance cutoff:
// results further than this in embedding space are dropped, not ranked lower.
// The default was tuned empirically against a labeled retrieval set.
type RetrievalConfig struct {
	TopK        int     `yaml:"top_k"`
	MaxDistance float64 `yaml:"max_distance"`
}

type OCRConfig struct {
	GroupSize    int    `yaml:"group_size"`
	Workers      int    `yaml:"workers"`
	ProgressFile string `yaml:"progress_file"`
	RenderDPI    int    `yaml:"render_dpi"`
}

// ScopeConfig declares what the tutor is allowed to answer. Topics is a
// keyword allowlist checked when retrieval comes back empty; Refusal is the
// canned answer for out-of-scope questions.
type ScopeConfig struct {
	Topics  []string `yaml:"topics"`
	Refusal string   `yaml:"refusal"`
}

type PromptConfig struct {
	Concise bool `yaml:"concise"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			Path:       "./chroma_db",
			Collection: "math_curriculum",
		},
		Embedding: EmbeddingConfig{
			BaseURL:        "https://api.cohere.com",
			Model:          "embed-multilingual-v3.0",
			BatchSize:      96,
			TimeoutSeconds: 30,
		},
		Chat: ChatConfig{
			Model:          "mistral-large-latest",
			TimeoutSeconds: 120,
		},
		Vision: VisionConfig{
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 60,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 100,
		},
		Retrieval: RetrievalConfig{
			TopK:        3,
			MaxDistance: 1.5,
		},
		OCR: OCRConfig{
			GroupSize:    33,
			Workers:      4,
			ProgressFile: "./curriculum_data/processed/progress.json",
			RenderDPI:    150,
		},
		Scope: ScopeConfig{
			Topics: []string{
				"dérivée", "intégrale", "limite", "fonction", "suite",
				"équation", "inéquation", "théorème", "probabilité",
				"statistique", "géométrie", "vecteur", "trigonométrie",
				"logarithme", "exponentielle", "polynôme", "matrice",
				"nombre complexe", "optique", "barycentre",
			},
			Refusal: "Je ne trouve pas cette information dans le programme officiel fourni.",
		},
	}
}

// Load reads a YAML config file on top of the defaults, then applies
// environment overrides for secrets. A missing file is not an error: the
// defaults plus environment are a complete configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets deployment environments inject secrets and paths without
// touching the config file.
func (c *Config) applyEnv() {
	setString(&c.Embedding.APIKey, "COHERE_API_KEY")
	setString(&c.Chat.APIKey, "CHAT_API_KEY")
	setString(&c.Chat.BaseURL, "CHAT_BASE_URL")
	setString(&c.Vision.APIKey, "VISION_API_KEY")
	setString(&c.Vision.BaseURL, "VISION_BASE_URL")
	setString(&c.Index.Path, "CHROMA_PATH")
	setInt(&c.Retrieval.TopK, "RETRIEVAL_TOP_K")

	// Vision commonly shares the chat vendor's key.
	if c.Vision.APIKey == "" {
		c.Vision.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Chat.APIKey == "" {
		c.Chat.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}
