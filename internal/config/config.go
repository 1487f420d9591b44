// Package config loads gateway configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ServerConfig holds transport and control-plane listening settings.
type ServerConfig struct {
	Addr        string
	APIKey      string
	EnableTLS   bool
	TLSCertPath string
	TLSKeyPath  string
	HTTPPort    string
}

// RoleLLMConfig configures the LLM backend used for one role (chat, embedding, query).
type RoleLLMConfig struct {
	Type    string // ollama|openai|anthropic|gemini|deepseek|xai|groq
	Model   string
	APIKey  string
	BaseURL string
}

// LLMConfig groups the per-role backend selections.
type LLMConfig struct {
	Type      string
	Chat      RoleLLMConfig
	Embedding RoleLLMConfig
	Query     RoleLLMConfig
}

// VectorConfig configures the shared Qdrant-backed index store used by RAG.
type VectorConfig struct {
	URL        string
	Dimension  int
	Metric     string
	Collection string
}

// HistoryConfig configures the conversation history backing store.
type HistoryConfig struct {
	Backend      string // redis|vector
	RedisURL     string
	RedisPrefix  string
	VectorURL    string
	Collection   string
	Dimension    int
	RecentLength int
}

// CacheConfig configures the two-tier response cache.
type CacheConfig struct {
	Enabled             bool
	RedisURL            string
	RedisTTLSeconds     int
	QdrantURL           string
	QdrantCollection    string
	SimilarityThreshold float64
}

// RemotePromptsConfig configures the Firebase Remote Config fetch for hot-reloadable prompts.
type RemotePromptsConfig struct {
	Enabled    bool
	ProjectID  string
	SAKeyPath  string
	LocalPath  string
}

// RAGConfig configures the retrieval engine: where its index schema file
// lives and the knobs governing its query pipeline.
type RAGConfig struct {
	SchemaPath     string
	DefaultLimit   int
	UseLLMFieldSel bool
}

// Config is the fully resolved gateway configuration.
type Config struct {
	Server        ServerConfig
	LLM           LLMConfig
	Vector        VectorConfig
	History       HistoryConfig
	Cache         CacheConfig
	RemotePrompts RemotePromptsConfig
	RAG           RAGConfig
}

// Load reads configuration from the environment (.env is loaded and overlaid
// on top of existing process environment variables, mirroring the teacher's
// development-friendly override behavior).
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{}

	cfg.Server.Addr = envOr("SERVER_ADDR", ":8443")
	cfg.Server.APIKey = strings.TrimSpace(os.Getenv("SERVER_API_KEY"))
	cfg.Server.EnableTLS = envBool("ENABLE_TLS", false)
	cfg.Server.TLSCertPath = strings.TrimSpace(os.Getenv("TLS_CERT_PATH"))
	cfg.Server.TLSKeyPath = strings.TrimSpace(os.Getenv("TLS_KEY_PATH"))
	cfg.Server.HTTPPort = envOr("HTTP_PORT", "8080")

	cfg.LLM.Type = envOr("LLM_TYPE", "openai")
	cfg.LLM.Chat = loadRole("CHAT")
	cfg.LLM.Embedding = loadRole("EMBEDDING")
	cfg.LLM.Query = loadRole("QUERY")

	cfg.Vector.URL = envOr("VECTOR_URL", "http://localhost:6334")
	cfg.Vector.Dimension = envInt("VECTOR_DIMENSION", 1536)
	cfg.Vector.Metric = envOr("VECTOR_METRIC", "Cosine")
	cfg.Vector.Collection = envOr("VECTOR_COLLECTION", "")

	cfg.History.Backend = envOr("HISTORY_BACKEND", "redis")
	cfg.History.RedisURL = envOr("HISTORY_REDIS_URL", "redis://localhost:6379")
	cfg.History.RedisPrefix = envOr("HISTORY_REDIS_PREFIX", "history:")
	cfg.History.VectorURL = envOr("HISTORY_VECTOR_URL", cfg.Vector.URL)
	cfg.History.Collection = envOr("HISTORY_COLLECTION", "conversation_history")
	cfg.History.Dimension = envInt("HISTORY_DIMENSION", cfg.Vector.Dimension)
	cfg.History.RecentLength = envInt("HISTORY_RECENT_LENGTH", 6)

	cfg.Cache.Enabled = envBool("ENABLE_CACHE", false)
	cfg.Cache.RedisURL = envOr("CACHE_REDIS_URL", "redis://localhost:6379")
	cfg.Cache.RedisTTLSeconds = envInt("CACHE_REDIS_TTL", 0)
	cfg.Cache.QdrantURL = envOr("CACHE_QDRANT_URL", cfg.Vector.URL)
	cfg.Cache.QdrantCollection = envOr("CACHE_QDRANT_COLLECTION", "response_cache")
	cfg.Cache.SimilarityThreshold = envFloat("CACHE_SIMILARITY_THRESHOLD", 0.5)

	cfg.RemotePrompts.Enabled = envBool("ENABLE_REMOTE_PROMPTS", false)
	cfg.RemotePrompts.ProjectID = strings.TrimSpace(os.Getenv("REMOTE_PROMPTS_PROJECT_ID"))
	cfg.RemotePrompts.SAKeyPath = strings.TrimSpace(os.Getenv("REMOTE_PROMPTS_SA_KEY_PATH"))
	cfg.RemotePrompts.LocalPath = envOr("PROMPTS_PATH", "prompts.json")

	if cfg.RemotePrompts.Enabled && (cfg.RemotePrompts.ProjectID == "" || cfg.RemotePrompts.SAKeyPath == "") {
		return cfg, fmt.Errorf("config: ENABLE_REMOTE_PROMPTS set but REMOTE_PROMPTS_PROJECT_ID/REMOTE_PROMPTS_SA_KEY_PATH missing")
	}

	cfg.RAG.SchemaPath = envOr("RAG_SCHEMA_PATH", "rag_schemas.json")
	cfg.RAG.DefaultLimit = envInt("RAG_DEFAULT_LIMIT", 5)
	cfg.RAG.UseLLMFieldSel = envBool("RAG_USE_LLM_FIELD_SELECTION", true)

	return cfg, nil
}

func loadRole(prefix string) RoleLLMConfig {
	return RoleLLMConfig{
		Type:    envOr(prefix+"_TYPE", ""),
		Model:   strings.TrimSpace(os.Getenv(prefix + "_MODEL")),
		APIKey:  strings.TrimSpace(os.Getenv(prefix + "_API_KEY")),
		BaseURL: strings.TrimSpace(os.Getenv(prefix + "_BASE_URL")),
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
