// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Embedding     EmbeddingConfig    `mapstructure:"embedding"`
	Retrieval     RetrievalConfig    `mapstructure:"retrieval"`
	Triage        TriageConfig       `mapstructure:"triage"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
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

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	ArticleIndex string   `mapstructure:"article_index"`
	URL          string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field.
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
}

// --- Domain Configuration Sections ---

// EmbeddingConfig controls the deterministic vectorizer and similarity store.
type EmbeddingConfig struct {
	Dimension           int     `mapstructure:"dimension"`
	ChunkSize           int     `mapstructure:"chunk_size"`
	ChunkOverlap        int     `mapstructure:"chunk_overlap"`
	ChunkThreshold      int     `mapstructure:"chunk_threshold"` // chars; longer articles also get chunk vectors
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	BatchPauseMs        int     `mapstructure:"batch_pause_ms"` // inter-item pause during reindex
	ModelTag            string  `mapstructure:"model_tag"`
}

// RetrievalConfig controls the search fallback chain and context builder.
type RetrievalConfig struct {
	HybridVectorWeight float64 `mapstructure:"hybrid_vector_weight"` // text weight is the complement
	MaxContextTokens   int     `mapstructure:"max_context_tokens"`
	ProbeTTLSeconds    int     `mapstructure:"probe_ttl_seconds"`
	ProbeTimeoutMs     int     `mapstructure:"probe_timeout_ms"`
	DefaultLimit       int     `mapstructure:"default_limit"`
}

// TriageConfig holds the confidence thresholds and escalation settings.
type TriageConfig struct {
	AutoCloseConfidence float64 `mapstructure:"auto_close_confidence"`
	LowConfidence       float64 `mapstructure:"low_confidence"`
	CriticalConfidence  float64 `mapstructure:"critical_confidence"`
	SLAHours            int     `mapstructure:"sla_hours"`
	EscalationEnabled   bool    `mapstructure:"escalation_enabled"`
	SweepIntervalMin    int     `mapstructure:"sweep_interval_min"`
	SweepBatchSize      int     `mapstructure:"sweep_batch_size"`
}

// NotificationConfig holds settings for the outbound notification dispatcher.
type NotificationConfig struct {
	OutboxSize int `mapstructure:"outbox_size"`
	Email      struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled           bool   `mapstructure:"enabled"`
		TopicARN          string `mapstructure:"topic_arn"`
		PriorityThreshold string `mapstructure:"priority_threshold"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig holds settings for the metrics/health listener.
type MetricsConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
}
