package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Instrument declares a known tradable asset and the free-text aliases the
// entity extractor maps onto it.
type Instrument struct {
	Symbol  string   `yaml:"symbol"`
	Aliases []string `yaml:"aliases"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		Type string `yaml:"type"` // "clickhouse" or "memory"
	} `yaml:"backend"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled   bool     `yaml:"enabled"`
		Brokers   []string `yaml:"brokers"`
		BarsTopic string   `yaml:"bars_topic"`
		NewsTopic string   `yaml:"news_topic"`
		Producer struct {
			Compression  string        `yaml:"compression"`
			RequiredAcks int           `yaml:"required_acks"`
			BatchSize    int           `yaml:"batch_size"`
			BatchBytes   int           `yaml:"batch_bytes"`
			Linger       time.Duration `yaml:"linger"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			MaxAttempts  int           `yaml:"max_attempts"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Feed struct {
		Enabled        bool          `yaml:"enabled"`
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		BatchSize      int           `yaml:"batch_size"`
		FlushInterval  time.Duration `yaml:"flush_interval"`
	} `yaml:"feed"`
	Fusion struct {
		Bucket        time.Duration `yaml:"bucket"`
		LagTolerance  time.Duration `yaml:"lag_tolerance"`
		SweepInterval time.Duration `yaml:"sweep_interval"` // 0 disables the eager sweeper
		MaxDirty      int           `yaml:"max_dirty"`
	} `yaml:"fusion"`
	NLP struct {
		Mode         string        `yaml:"mode"` // "local" or "http"
		ServiceURL   string        `yaml:"service_url"`
		Timeout      time.Duration `yaml:"timeout"`
		EmbeddingDim int           `yaml:"embedding_dim"`
	} `yaml:"nlp"`
	Agent struct {
		MaxToolCalls int           `yaml:"max_tool_calls"`
		ToolTimeout  time.Duration `yaml:"tool_timeout"`
	} `yaml:"agent"`
	Retrieval struct {
		CacheTTL time.Duration `yaml:"cache_ttl"`
		Redis    struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"retrieval"`
	Instruments []Instrument `yaml:"instruments"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Retrieval.Redis.Addr = v
	}
	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("NLP_SERVICE_URL"); v != "" {
		c.NLP.ServiceURL = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "clickhouse" && c.Backend.Type != "memory" {
		return fmt.Errorf("backend.type must be 'clickhouse' or 'memory', got '%s'", c.Backend.Type)
	}
	if c.Backend.Type == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for the clickhouse backend")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Feed.Enabled && c.Feed.WebSocketURL == "" {
		return fmt.Errorf("feed.websocket_url is required when the feed is enabled")
	}
	if c.NLP.Mode == "http" && c.NLP.ServiceURL == "" {
		return fmt.Errorf("nlp.service_url is required for nlp.mode http")
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("instruments cannot be empty")
	}
	return nil
}

// BucketWidth returns the configured fusion bucket or the daily default.
func (c *Config) BucketWidth() time.Duration {
	if c.Fusion.Bucket > 0 {
		return c.Fusion.Bucket
	}
	return 24 * time.Hour
}

// LagTolerance returns the configured news lag tolerance (zero allowed).
func (c *Config) LagTolerance() time.Duration {
	return c.Fusion.LagTolerance
}

// EmbeddingDim returns the configured embedding dimension or a default.
func (c *Config) EmbeddingDim() int {
	if c.NLP.EmbeddingDim > 0 {
		return c.NLP.EmbeddingDim
	}
	return 256
}

// MaxToolCalls returns the per-turn tool budget or a default of 5.
func (c *Config) MaxToolCalls() int {
	if c.Agent.MaxToolCalls > 0 {
		return c.Agent.MaxToolCalls
	}
	return 5
}

// ToolTimeout returns the per-call timeout or a default of 5s.
func (c *Config) ToolTimeout() time.Duration {
	if c.Agent.ToolTimeout > 0 {
		return c.Agent.ToolTimeout
	}
	return 5 * time.Second
}
