package config

import (
	"fmt"
	"os"
	"strconv"
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
	OddsAPI struct {
		APIKey         string        `yaml:"api_key"`
		BaseURL        string        `yaml:"base_url"`
		Regions        []string      `yaml:"regions"`
		Markets        []string      `yaml:"markets"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		MaxRetries     int           `yaml:"max_retries"`
		RetryDelay     time.Duration `yaml:"retry_delay"`
	} `yaml:"odds_api"`
	Quota struct {
		MaxRequests int           `yaml:"max_requests"`
		Window      time.Duration `yaml:"window"`
	} `yaml:"quota"`
	Cache struct {
		MetadataTTL time.Duration `yaml:"metadata_ttl"`
		GameListTTL time.Duration `yaml:"game_list_ttl"`
		LiveOddsTTL time.Duration `yaml:"live_odds_ttl"`
		Redis       struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Scan struct {
		Interval           time.Duration `yaml:"interval"` // 0 disables the background loop
		MaxConcurrency     int           `yaml:"max_concurrency"`
		EarlyExitThreshold int           `yaml:"early_exit_threshold"`
		TotalStake         float64       `yaml:"total_stake"`
		MinProfitMargin    float64       `yaml:"min_profit_margin"`
		FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	} `yaml:"scan"`
	Pool struct {
		Workers      int           `yaml:"workers"` // 0 = derive from CPU count
		QueueSize    int           `yaml:"queue_size"`
		UnitTimeout  time.Duration `yaml:"unit_timeout"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"pool"`
	Priority struct {
		Window time.Duration      `yaml:"window"`
		Base   map[string]float64 `yaml:"base"`
	} `yaml:"priority"`
	Sports []string `yaml:"sports"`
	Kafka  struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		MaxAttempts  int           `yaml:"max_attempts"`
		BatchSize    int           `yaml:"batch_size"`
		BatchBytes   int           `yaml:"batch_bytes"`
		Linger       time.Duration `yaml:"linger"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		Async        bool          `yaml:"async"`
	} `yaml:"kafka"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

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

	if v := os.Getenv("ODDS_API_KEY"); v != "" {
		c.OddsAPI.APIKey = v
	}
	if v := os.Getenv("SPORTS"); v != "" {
		c.Sports = strings.Split(v, ",")
	}
	if v := os.Getenv("QUOTA_MAX_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Quota.MaxRequests = n
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
		c.Cache.Redis.Enabled = true
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.OddsAPI.BaseURL == "" {
		c.OddsAPI.BaseURL = "https://api.the-odds-api.com"
	}
	if len(c.OddsAPI.Regions) == 0 {
		c.OddsAPI.Regions = []string{"us"}
	}
	if len(c.OddsAPI.Markets) == 0 {
		c.OddsAPI.Markets = []string{"h2h", "spreads", "totals"}
	}
	if c.OddsAPI.RequestTimeout == 0 {
		c.OddsAPI.RequestTimeout = 10 * time.Second
	}
	if c.OddsAPI.MaxRetries == 0 {
		c.OddsAPI.MaxRetries = 3
	}
	if c.OddsAPI.RetryDelay == 0 {
		c.OddsAPI.RetryDelay = 2 * time.Second
	}
	if c.Quota.MaxRequests == 0 {
		c.Quota.MaxRequests = 500
	}
	if c.Quota.Window == 0 {
		c.Quota.Window = 30 * 24 * time.Hour
	}
	if c.Cache.MetadataTTL == 0 {
		c.Cache.MetadataTTL = 6 * time.Hour
	}
	if c.Cache.GameListTTL == 0 {
		c.Cache.GameListTTL = 5 * time.Minute
	}
	if c.Cache.LiveOddsTTL == 0 {
		c.Cache.LiveOddsTTL = 90 * time.Second
	}
	if c.Scan.MaxConcurrency == 0 {
		c.Scan.MaxConcurrency = 3
	}
	if c.Scan.EarlyExitThreshold == 0 {
		c.Scan.EarlyExitThreshold = 50
	}
	if c.Scan.TotalStake == 0 {
		c.Scan.TotalStake = 1000
	}
	if c.Scan.FetchTimeout == 0 {
		c.Scan.FetchTimeout = 15 * time.Second
	}
	if c.Pool.QueueSize == 0 {
		c.Pool.QueueSize = 1024
	}
	if c.Pool.UnitTimeout == 0 {
		c.Pool.UnitTimeout = 30 * time.Second
	}
	if c.Pool.BatchTimeout == 0 {
		c.Pool.BatchTimeout = 120 * time.Second
	}
	if c.Priority.Window == 0 {
		c.Priority.Window = 24 * time.Hour
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.OddsAPI.APIKey == "" && os.Getenv("ODDS_API_KEY") == "" {
		return fmt.Errorf("odds_api.api_key is required")
	}
	if len(c.Sports) == 0 {
		return fmt.Errorf("sports cannot be empty")
	}
	if c.Scan.TotalStake < 0 {
		return fmt.Errorf("scan.total_stake cannot be negative")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers are required when kafka is enabled")
	}
	if c.Kafka.Enabled && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when kafka is enabled")
	}
	return nil
}
