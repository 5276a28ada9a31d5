// Package config loads server configuration with the precedence
// defaults < YAML file < environment. A .env file, if present, is
// folded into the environment before processing.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "KBCHAT"

// Specification is the full server configuration.
type Specification struct {
	Port     int    `yaml:"port" split_words:"true"`
	LogLevel string `yaml:"logLevel" split_words:"true"`

	Ollama OllamaSpecification `yaml:"ollama"`
	Qdrant QdrantSpecification `yaml:"qdrant"`
	RAG    RAGSpecification    `yaml:"rag"`

	// VectorStore selects the backing store: "qdrant" or "memory".
	// The memory store is for development and tests only.
	VectorStore string `yaml:"vectorStore" split_words:"true"`
}

// OllamaSpecification configures the embedding/generation engine.
type OllamaSpecification struct {
	URL         string  `yaml:"url" envconfig:"OLLAMA_URL"`
	ChatModel   string  `yaml:"chatModel" envconfig:"OLLAMA_CHAT_MODEL"`
	EmbedModel  string  `yaml:"embedModel" envconfig:"OLLAMA_EMBED_MODEL"`
	EmbedDim    int     `yaml:"embedDim" envconfig:"OLLAMA_EMBED_DIM"`
	Temperature float64 `yaml:"temperature" envconfig:"OLLAMA_TEMPERATURE"`
	TopP        float64 `yaml:"topP" envconfig:"OLLAMA_TOP_P"`
	NumPredict  int     `yaml:"numPredict" envconfig:"OLLAMA_NUM_PREDICT"`
}

// QdrantSpecification configures the vector database connection.
type QdrantSpecification struct {
	Host       string `yaml:"host" envconfig:"QDRANT_HOST"`
	Port       int    `yaml:"port" envconfig:"QDRANT_PORT"`
	Collection string `yaml:"collection" envconfig:"QDRANT_COLLECTION"`
}

// RAGSpecification configures chunking and retrieval parameters.
type RAGSpecification struct {
	ChunkSize    int `yaml:"chunkSize" envconfig:"CHUNK_SIZE"`
	ChunkOverlap int `yaml:"chunkOverlap" envconfig:"CHUNK_OVERLAP"`
	TopK         int `yaml:"topK" envconfig:"TOP_K"`
}

// Load reads configuration from configPath (may be empty; common
// locations are then tried) and the environment.
func Load(configPath string) (Specification, error) {
	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	var cfg Specification
	setDefaults(&cfg)

	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{"config/kbchat.yaml", "./kbchat.yaml"} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	switch strings.ToLower(cfg.VectorStore) {
	case "qdrant", "memory":
	default:
		return Specification{}, fmt.Errorf("unsupported vector store: %s", cfg.VectorStore)
	}

	return cfg, nil
}

func setDefaults(cfg *Specification) {
	cfg.Port = 8080
	cfg.LogLevel = "info"
	cfg.VectorStore = "qdrant"

	cfg.Ollama.URL = "http://localhost:11434"
	cfg.Ollama.ChatModel = "llama3.2:3b"
	cfg.Ollama.EmbedModel = "nomic-embed-text"
	cfg.Ollama.EmbedDim = 768
	cfg.Ollama.Temperature = 0.7
	cfg.Ollama.TopP = 0.9
	cfg.Ollama.NumPredict = 1024

	cfg.Qdrant.Host = "localhost"
	cfg.Qdrant.Port = 6334
	cfg.Qdrant.Collection = "shinhan-knowledge-base"

	cfg.RAG.ChunkSize = 800
	cfg.RAG.ChunkOverlap = 150
	cfg.RAG.TopK = 4
}

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
