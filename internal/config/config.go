// Package config loads, validates and watches the service configuration.
// Configuration is read from a YAML file via viper with ADVISOR_-prefixed
// environment variable overrides; every section carries its own Validate so
// misconfiguration fails at startup, not mid-turn.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/types"
)

// Version is injected at build time via ldflags.
var Version = "dev"

// Config is the root configuration for the merchant-advisor service.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Postgres     PostgresConfig     `mapstructure:"postgres"`
	Redis        RedisConfig        `mapstructure:"redis"`
	OpenSearch   OpenSearchConfig   `mapstructure:"opensearch"`
	LLM          LLMConfig          `mapstructure:"llm"`
	WebSearch    WebSearchConfig    `mapstructure:"websearch"`
	Forecast     ForecastConfig     `mapstructure:"forecast"`
	Weather      WeatherConfig      `mapstructure:"weather"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Minio        MinioConfig        `mapstructure:"minio"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Logging      logging.Config     `mapstructure:"logging"`
}

// ServerConfig holds the HTTP and gRPC listener settings.
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
	GRPC GRPCConfig `mapstructure:"grpc"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type GRPCConfig struct {
	Port int `mapstructure:"port"`
}

// PostgresConfig holds the merchant/trade-area database settings.
type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// DSN builds a pgx-compatible connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

func (c PostgresConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("postgres.host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("postgres.port %d out of range", c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("postgres.database must not be empty")
	}
	return nil
}

// RedisConfig holds the conversation history store settings.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

func (c RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis.addr must not be empty")
	}
	return nil
}

// OpenSearchConfig holds the internal news-index provider settings. The
// provider is optional; an empty address disables it.
type OpenSearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// LLMConfig holds the chat-completion client settings.
type LLMConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Temperature float64       `mapstructure:"temperature"`
}

func (c LLMConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative")
	}
	return nil
}

// WebSearchConfig holds the aggregation pipeline settings.
type WebSearchConfig struct {
	TopK            int           `mapstructure:"top_k"`
	RecencyDays     int           `mapstructure:"recency_days"`
	ThinResultCount int           `mapstructure:"thin_result_count"`
	RerankMode      string        `mapstructure:"rerank_mode"` // "lexical" or "embedding"
	RewriteQueries  bool          `mapstructure:"rewrite_queries"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`

	Tavily ProviderConfig `mapstructure:"tavily"`
	Serper ProviderConfig `mapstructure:"serper"`
}

// ProviderConfig holds one external search provider's settings. An empty
// APIKey disables the provider.
type ProviderConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
}

func (c WebSearchConfig) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("websearch.top_k must be positive")
	}
	switch c.RerankMode {
	case "", "lexical", "embedding":
	default:
		return fmt.Errorf("websearch.rerank_mode %q not supported", c.RerankMode)
	}
	return nil
}

// ForecastConfig holds the external sales-band predictor settings.
type ForecastConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WeatherConfig holds the KMA short-range forecast settings. An empty
// APIKey disables the weather outlook in season metrics.
type WeatherConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// KafkaConfig holds the turn-event publisher settings. Empty brokers disable
// publishing.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MinioConfig holds the transcript archive settings. An empty endpoint
// disables archiving.
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// ConversationConfig holds the orchestrator tuning knobs.
type ConversationConfig struct {
	// MaxTurns bounds the history sliding window; 2*MaxTurns messages are
	// retained.
	MaxTurns int `mapstructure:"max_turns"`

	// SummaryThreshold is the message count at which the summarisation
	// placeholder fires.
	SummaryThreshold int `mapstructure:"summary_threshold"`

	// MaxRelevanceRetries bounds the relevance-gate retry loop.
	MaxRelevanceRetries int `mapstructure:"max_relevance_retries"`

	// WebIntents lists the intents for which web augmentation runs.
	WebIntents []string `mapstructure:"web_intents"`
}

func (c ConversationConfig) Validate() error {
	if c.MaxTurns <= 0 {
		return fmt.Errorf("conversation.max_turns must be positive")
	}
	if c.MaxRelevanceRetries < 0 {
		return fmt.Errorf("conversation.max_relevance_retries must not be negative")
	}
	for _, s := range c.WebIntents {
		if _, ok := types.ParseIntent(s); !ok {
			return fmt.Errorf("conversation.web_intents contains unknown intent %q", s)
		}
	}
	return nil
}

// WebIntentSet returns the configured web-augmentation intents as a set.
func (c ConversationConfig) WebIntentSet() map[types.Intent]bool {
	set := make(map[types.Intent]bool, len(c.WebIntents))
	for _, s := range c.WebIntents {
		if i, ok := types.ParseIntent(s); ok {
			set[i] = true
		}
	}
	return set
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Postgres.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.WebSearch.Validate(); err != nil {
		return err
	}
	return c.Conversation.Validate()
}

// NewDefaultConfig returns a configuration suitable for local development.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTP: HTTPConfig{Port: 8080, ReadTimeout: 15 * time.Second, WriteTimeout: 60 * time.Second},
			GRPC: GRPCConfig{Port: 9090},
		},
		Postgres: PostgresConfig{
			Host: "localhost", Port: 5432, Database: "advisor",
			Username: "advisor", Password: "advisor", SSLMode: "disable",
			MaxConns: 10, ConnMaxLifetime: time.Hour,
			MigrationsPath: "internal/infrastructure/database/postgres/migrations",
		},
		Redis: RedisConfig{Addr: "localhost:6379", KeyPrefix: "advisor", TTL: 72 * time.Hour},
		LLM: LLMConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini", Timeout: 30 * time.Second,
			MaxRetries: 2, Temperature: 0.3,
		},
		WebSearch: WebSearchConfig{
			TopK: 5, RecencyDays: 30, ThinResultCount: 5,
			RerankMode: "lexical", RewriteQueries: true,
			ProviderTimeout: 10 * time.Second,
			Tavily:          ProviderConfig{Endpoint: "https://api.tavily.com/search"},
			Serper:          ProviderConfig{Endpoint: "https://google.serper.dev/search"},
		},
		Forecast: ForecastConfig{Timeout: 10 * time.Second},
		Weather: WeatherConfig{
			Endpoint: "https://apihub.kma.go.kr/api/typ02/openApi/VilageFcstInfoService_2.0/getVilageFcst",
			Timeout:  10 * time.Second,
		},
		Kafka:    KafkaConfig{Topic: "advisor.turns"},
		Minio:    MinioConfig{Bucket: "advisor-transcripts"},
		Conversation: ConversationConfig{
			MaxTurns:            10,
			SummaryThreshold:    10,
			MaxRelevanceRetries: 1,
			WebIntents:          []string{"SNS", "ISSUE", "SEASON", "GENERAL"},
		},
		Logging: logging.Config{Level: "info", Format: "json"},
	}
}

// Load reads the configuration file at path, applies environment overrides
// (prefix ADVISOR, dots replaced by underscores) and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ADVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := NewDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Watch re-reads the file on change and invokes onChange with the new
// configuration. Invalid updates are logged and dropped; the previous
// configuration stays active.
func Watch(path string, log logging.Logger, onChange func(*Config)) {
	v := viper.New()
	v.SetConfigFile(path)
	_ = v.ReadInConfig()

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := Load(path)
		if err != nil {
			log.Warn("config reload failed, keeping previous", logging.String("path", path), logging.Err(err))
			return
		}
		log.Info("config reloaded", logging.String("path", path))
		onChange(cfg)
	})
	v.WatchConfig()
}
