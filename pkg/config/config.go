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
	Backend struct {
		Type         string        `yaml:"type"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		AlertTopic   string   `yaml:"alert_topic"`
		OutcomeTopic string   `yaml:"outcome_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
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
	Alpaca struct {
		APIKey         string        `yaml:"api_key"`
		APISecret      string        `yaml:"api_secret"`
		DataBaseURL    string        `yaml:"data_base_url"`
		StreamURL      string        `yaml:"stream_url"`
		Feed           string        `yaml:"feed"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		RateLimit      int           `yaml:"rate_limit"`
	} `yaml:"alpaca"`
	Strategy struct {
		Symbols            []string `yaml:"symbols"`
		Benchmarks         []string `yaml:"benchmarks"`
		TimeframeMin       int      `yaml:"timeframe_min"`
		RetestTolerancePct float64  `yaml:"retest_tolerance_pct"`
		RSWindowBars       int      `yaml:"rs_window_bars"`
		BreadthBullPct     float64  `yaml:"breadth_bull_pct"`
		BreadthBearPct     float64  `yaml:"breadth_bear_pct"`
		AlertHistory       int      `yaml:"alert_history"`
	} `yaml:"strategy"`
	Backtest struct {
		QueueName          string        `yaml:"queue_name"`
		FetchChunk         time.Duration `yaml:"fetch_chunk"`
		RepeatLookback     int           `yaml:"repeat_lookback"`
		RepeatTolerancePct float64       `yaml:"repeat_tolerance_pct"`
		RepeatMinTouches   int           `yaml:"repeat_min_touches"`
		RepeatMaxLevels    int           `yaml:"repeat_max_levels"`
		Redis              struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"backtest"`
	Cache struct {
		SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
		CandlesTTL  time.Duration `yaml:"candles_ttl"`
	} `yaml:"cache"`
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
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		c.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		c.Alpaca.APISecret = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Strategy.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Backtest.Redis.Addr = v
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
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if len(c.Strategy.Symbols) == 0 {
		return fmt.Errorf("strategy.symbols cannot be empty")
	}
	if len(c.Strategy.Benchmarks) == 0 {
		return fmt.Errorf("strategy.benchmarks cannot be empty")
	}
	if c.Alpaca.APIKey == "" {
		return fmt.Errorf("alpaca.api_key is required")
	}
	if c.Alpaca.APISecret == "" {
		return fmt.Errorf("alpaca.api_secret is required")
	}
	if c.Strategy.BreadthBullPct != 0 && c.Strategy.BreadthBearPct != 0 &&
		c.Strategy.BreadthBearPct > c.Strategy.BreadthBullPct {
		return fmt.Errorf("strategy.breadth_bear_pct must not exceed breadth_bull_pct")
	}
	return nil
}
