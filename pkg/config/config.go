package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RateLimit       struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Logger struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logger"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Pricing struct {
		MinOfferFloor      float64            `yaml:"min_offer_floor"`
		CategoryCeilings   map[string]float64 `yaml:"category_ceilings"`
		DailySpendingLimit float64            `yaml:"daily_spending_limit"`
		CacheTTL           struct {
			Popular time.Duration `yaml:"popular"`
			Mid     time.Duration `yaml:"mid"`
			Rare    time.Duration `yaml:"rare"`
		} `yaml:"cache_ttl"`
	} `yaml:"pricing"`
	Fraud struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"fraud"`
	Optimizer struct {
		Schedule      string `yaml:"schedule"`
		MinDaysActive int    `yaml:"min_days_active"`
		DryRun        bool   `yaml:"dry_run"`
		BatchSize     int    `yaml:"batch_size"`
		Workers       int    `yaml:"workers"`
	} `yaml:"optimizer"`
	Marketplace struct {
		Ebay struct {
			BaseURL           string        `yaml:"base_url"`
			AuthURL           string        `yaml:"auth_url"`
			AppID             string        `yaml:"app_id"`
			CertID            string        `yaml:"cert_id"`
			RequestsPerSecond float64       `yaml:"requests_per_second"`
			MaxRetries        int           `yaml:"max_retries"`
			BaseBackoff       time.Duration `yaml:"base_backoff"`
			Timeout           time.Duration `yaml:"timeout"`
		} `yaml:"ebay"`
		Facebook struct {
			Enabled     bool          `yaml:"enabled"`
			BaseURL     string        `yaml:"base_url"`
			PageTimeout time.Duration `yaml:"page_timeout"`
			Scrolls     int           `yaml:"scrolls"`
			MinInterval time.Duration `yaml:"min_interval"`
			MaxRetries  int           `yaml:"max_retries"`
			BaseBackoff time.Duration `yaml:"base_backoff"`
			ChromePath  string        `yaml:"chrome_path"`
		} `yaml:"facebook"`
	} `yaml:"marketplace"`
	Vision struct {
		BaseURL    string        `yaml:"base_url"`
		Timeout    time.Duration `yaml:"timeout"`
		MaxRetries int           `yaml:"max_retries"`
	} `yaml:"vision"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Topics       struct {
			OffersPriced    string `yaml:"offers_priced"`
			OffersSubmitted string `yaml:"offers_submitted"`
			FraudAssessed   string `yaml:"fraud_assessed"`
			ErrorLogs       string `yaml:"error_logs"`
		} `yaml:"topics"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
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
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		AsyncInsert  bool          `yaml:"async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"clickhouse"`
	Postgres struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"postgres"`
}

// Load reads and parses a YAML configuration file, filling defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML, applies a .env file if one exists,
// then overrides with environment variables and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{Environment: "development"}

	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 30 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.RateLimit.RequestsPerSecond = 20
	c.Server.RateLimit.Burst = 40

	c.Logger.Level = "info"
	c.Logger.Format = "json"
	c.Logger.Output = "stdout"

	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"

	c.Pricing.MinOfferFloor = 5.0
	c.Pricing.CategoryCeilings = map[string]float64{"Consumer Electronics": 2000.0}
	c.Pricing.DailySpendingLimit = 10000
	c.Pricing.CacheTTL.Popular = 4 * time.Hour
	c.Pricing.CacheTTL.Mid = 24 * time.Hour
	c.Pricing.CacheTTL.Rare = 0

	c.Fraud.Enabled = true

	c.Optimizer.Schedule = "0 2 * * *"
	c.Optimizer.MinDaysActive = 7
	c.Optimizer.BatchSize = 500
	c.Optimizer.Workers = 2

	c.Marketplace.Ebay.BaseURL = "https://api.ebay.com/buy/browse/v1"
	c.Marketplace.Ebay.AuthURL = "https://api.ebay.com/identity/v1/oauth2/token"
	c.Marketplace.Ebay.RequestsPerSecond = 1
	c.Marketplace.Ebay.MaxRetries = 3
	c.Marketplace.Ebay.BaseBackoff = 2 * time.Second
	c.Marketplace.Ebay.Timeout = 30 * time.Second

	c.Marketplace.Facebook.BaseURL = "https://www.facebook.com/marketplace"
	c.Marketplace.Facebook.PageTimeout = 30 * time.Second
	c.Marketplace.Facebook.Scrolls = 3
	c.Marketplace.Facebook.MinInterval = 2 * time.Second
	c.Marketplace.Facebook.MaxRetries = 3
	c.Marketplace.Facebook.BaseBackoff = 2 * time.Second

	c.Vision.Timeout = 30 * time.Second
	c.Vision.MaxRetries = 2

	c.Redis.Addr = "localhost:6379"
	c.Redis.Prefix = "pawn"

	c.Kafka.RequiredAcks = -1
	c.Kafka.Compression = "snappy"
	c.Kafka.Topics.OffersPriced = "pawn.offers.priced"
	c.Kafka.Topics.OffersSubmitted = "pawn.offers.submitted"
	c.Kafka.Topics.FraudAssessed = "pawn.fraud.assessed"
	c.Kafka.Topics.ErrorLogs = "pawn.logs.errors"
	c.Kafka.Consumer.GroupID = "pawn-pricing"
	c.Kafka.Consumer.Workers = 4
	c.Kafka.Consumer.RetryMax = 3
	c.Kafka.Consumer.BackoffMin = 200 * time.Millisecond
	c.Kafka.Consumer.BackoffMax = 5 * time.Second
	c.Kafka.Consumer.DLQTopic = "pawn.offers.submitted.dlq"

	c.ClickHouse.Host = "localhost"
	c.ClickHouse.Port = 9000
	c.ClickHouse.Database = "pawn"
	c.ClickHouse.User = "default"
	c.ClickHouse.DialTimeout = 5 * time.Second
	c.ClickHouse.ReadTimeout = 30 * time.Second
	c.ClickHouse.WriteTimeout = 30 * time.Second

	c.Postgres.Host = "localhost"
	c.Postgres.Port = 5432
	c.Postgres.User = "pawn"
	c.Postgres.Database = "pawn"
	c.Postgres.SSLMode = "disable"

	return c
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("MIN_OFFER_AMOUNT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Pricing.MinOfferFloor = f
		}
	}
	if v := os.Getenv("MAX_ELECTRONICS_OFFER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			if c.Pricing.CategoryCeilings == nil {
				c.Pricing.CategoryCeilings = map[string]float64{}
			}
			c.Pricing.CategoryCeilings["Consumer Electronics"] = f
		}
	}
	if v := os.Getenv("EBAY_APP_ID"); v != "" {
		c.Marketplace.Ebay.AppID = v
	}
	if v := os.Getenv("EBAY_CERT_ID"); v != "" {
		c.Marketplace.Ebay.CertID = v
	}
	if v := os.Getenv("VISION_SERVICE_URL"); v != "" {
		c.Vision.BaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		c.Postgres.Host = v
		c.Postgres.Enabled = true
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Pricing.MinOfferFloor < 0 {
		return fmt.Errorf("pricing.min_offer_floor must be non-negative, got %v", c.Pricing.MinOfferFloor)
	}
	for cat, ceiling := range c.Pricing.CategoryCeilings {
		if ceiling < c.Pricing.MinOfferFloor {
			return fmt.Errorf("pricing.category_ceilings[%q]=%v is below min_offer_floor", cat, ceiling)
		}
	}
	if c.Optimizer.MinDaysActive < 0 {
		return fmt.Errorf("optimizer.min_days_active must be non-negative")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Environment == "production" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required in production")
	}
	return nil
}

// PostgresDSN returns the lib/pq connection string.
func (c *Config) PostgresDSN() string {
	p := c.Postgres
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}
