package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

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
	Store struct {
		Type   string `yaml:"type"` // memory or redis
		Prefix string `yaml:"prefix"`
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"store"`
	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`
	Executors []ExecutorConfig `yaml:"executors"`
	Risk      struct {
		MaxDrawdownPct         float64             `yaml:"max_drawdown_pct"`
		DailyLossLimitPct      float64             `yaml:"daily_loss_limit_pct"`
		MaxPositionSizePct     float64             `yaml:"max_position_size_pct"`
		MaxCorrelatedPositions int                 `yaml:"max_correlated_positions"`
		CorrelationGroups      map[string][]string `yaml:"correlation_groups"`
	} `yaml:"risk"`
	Queue struct {
		Interval   time.Duration `yaml:"interval"`
		Batch      int           `yaml:"batch"`
		MaxRetries int           `yaml:"max_retries"`
		Backoff    float64       `yaml:"backoff"`
	} `yaml:"queue"`
	Integrity struct {
		SampleInterval time.Duration `yaml:"sample_interval"`
		SampleSize     int           `yaml:"sample_size"`
		FullInterval   time.Duration `yaml:"full_interval"`
	} `yaml:"integrity"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		SignalsTopic string   `yaml:"signals_topic"`
		AlertsTopic  string   `yaml:"alerts_topic"`
		LogsTopic    string   `yaml:"logs_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Consumer     struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		Table        string        `yaml:"table"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"clickhouse"`
}

// ExecutorConfig declares one downstream executor service.
type ExecutorConfig struct {
	ID              string        `yaml:"id"`
	Family          string        `yaml:"family"`
	Endpoint        string        `yaml:"endpoint"`
	StreamURL       string        `yaml:"stream_url"`
	MinConfidence   float64       `yaml:"min_confidence"`
	ExcludedRegimes []string      `yaml:"excluded_regimes"`
	Timeout         time.Duration `yaml:"timeout"`
	Disabled        bool          `yaml:"disabled"`
	ReconnectDelay  time.Duration `yaml:"reconnect_delay"`
	PingInterval    time.Duration `yaml:"ping_interval"`
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

	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Store.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		c.Journal.Path = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Store.Type != "" && c.Store.Type != "memory" && c.Store.Type != "redis" {
		return fmt.Errorf("store.type must be 'memory' or 'redis', got '%s'", c.Store.Type)
	}
	if c.Store.Type == "redis" && c.Store.Redis.Addr == "" {
		return fmt.Errorf("store.redis.addr is required when store.type is 'redis'")
	}
	if c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required")
	}
	if len(c.Executors) == 0 {
		return fmt.Errorf("at least one executor is required")
	}
	seen := make(map[string]bool, len(c.Executors))
	for i, ex := range c.Executors {
		if ex.ID == "" {
			return fmt.Errorf("executors[%d].id is required", i)
		}
		if seen[ex.ID] {
			return fmt.Errorf("duplicate executor id '%s'", ex.ID)
		}
		seen[ex.ID] = true
		if ex.Endpoint == "" {
			return fmt.Errorf("executor '%s': endpoint is required", ex.ID)
		}
		if ex.MinConfidence < 0 || ex.MinConfidence > 100 {
			return fmt.Errorf("executor '%s': min_confidence must be within [0, 100]", ex.ID)
		}
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.SignalsTopic == "" {
			return fmt.Errorf("kafka.signals_topic is required when kafka is enabled")
		}
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}

// SymbolGroups inverts correlation_groups into a symbol -> group lookup.
func (c *Config) SymbolGroups() map[string]string {
	out := make(map[string]string)
	for group, symbols := range c.Risk.CorrelationGroups {
		for _, s := range symbols {
			out[s] = group
		}
	}
	return out
}
