// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Embeddings    EmbeddingsConfig    `mapstructure:"embeddings"`
	Search        SearchConfig        `mapstructure:"search"`
	Rerank        RerankConfig        `mapstructure:"rerank"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Ingestion     IngestionConfig     `mapstructure:"ingestion"`
	Workflow      WorkflowConfig      `mapstructure:"workflow"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	Timeout    int      `mapstructure:"timeout"` // milliseconds
	URL        string   `mapstructure:"url"`     // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// --- Generation Backends ---

// LLMConfig holds settings for the chat-completions backend.
type LLMConfig struct {
	BaseURL      string  `mapstructure:"base_url"`
	APIKey       string  `mapstructure:"api_key"`
	Model        string  `mapstructure:"model"`
	PlannerModel string  `mapstructure:"planner_model"`
	Temperature  float64 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	Timeout      int     `mapstructure:"timeout"` // milliseconds
	MaxRetries   int     `mapstructure:"max_retries"`
}

// EmbeddingsConfig holds settings for the embeddings backend.
type EmbeddingsConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	Timeout    int    `mapstructure:"timeout"`   // milliseconds
	CacheTTL   int    `mapstructure:"cache_ttl"` // seconds, 0 disables caching
}

// --- External Search ---

// SearchConfig holds settings for the web search API.
type SearchConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	APIKey         string   `mapstructure:"api_key"`
	MaxResults     int      `mapstructure:"max_results"`
	SearchDepth    string   `mapstructure:"search_depth"`
	IncludeDomains []string `mapstructure:"include_domains"`
	Timeout        int      `mapstructure:"timeout"`   // milliseconds
	CacheTTL       int      `mapstructure:"cache_ttl"` // seconds, 0 disables caching
}

// RerankConfig holds settings for the cross-encoder rerank API. An empty
// APIKey means the reranker is unavailable and the rerank strategy degrades
// to plain similarity.
type RerankConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// --- Retrieval / Ingestion ---

type RetrievalConfig struct {
	DefaultStrategy    string  `mapstructure:"default_strategy"`
	TopK               int     `mapstructure:"top_k"`
	Collection         string  `mapstructure:"collection"`
	SemanticCollection string  `mapstructure:"semantic_collection"`
	Lambda             float64 `mapstructure:"lambda"`
	BlendRatio         float64 `mapstructure:"blend_ratio"`
}

// ActiveCollection returns the collection matching the default chunking strategy.
func (r RetrievalConfig) ActiveCollection(chunkingStrategy string) string {
	if chunkingStrategy == "semantic" {
		return r.SemanticCollection
	}
	return r.Collection
}

type IngestionConfig struct {
	ChunkSize       int    `mapstructure:"chunk_size"`
	ChunkOverlap    int    `mapstructure:"chunk_overlap"`
	DefaultStrategy string `mapstructure:"default_strategy"`
}

// --- Workflow ---

type WorkflowConfig struct {
	BranchTimeout int `mapstructure:"branch_timeout"` // milliseconds, per search branch
	NodeTimeout   int `mapstructure:"node_timeout"`   // milliseconds, per sequential node
}

// --- Notifications ---

// NotificationConfig holds settings for escalation notifications.
type NotificationConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Region          string `mapstructure:"region"`
	FromEmail       string `mapstructure:"from_email"`
	EscalationEmail string `mapstructure:"escalation_email"`
	TopicARN        string `mapstructure:"topic_arn"`
}

// --- Observability ---

type ObservabilityConfig struct {
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
