package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if c.Pricing.MinOfferFloor != 5 {
		t.Errorf("min offer floor = %v, want 5", c.Pricing.MinOfferFloor)
	}
	if c.Pricing.CategoryCeilings["Consumer Electronics"] != 2000 {
		t.Errorf("electronics ceiling = %v, want 2000", c.Pricing.CategoryCeilings["Consumer Electronics"])
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
pricing:
  cache_ttl:
    popular: 2h
optimizer:
  dry_run: true
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", c.Server.Port)
	}
	if c.Pricing.CacheTTL.Popular != 2*time.Hour {
		t.Errorf("popular ttl = %v, want 2h", c.Pricing.CacheTTL.Popular)
	}
	if c.Pricing.CacheTTL.Mid != 24*time.Hour {
		t.Errorf("mid ttl = %v, want default 24h", c.Pricing.CacheTTL.Mid)
	}
	if !c.Optimizer.DryRun || c.Optimizer.MinDaysActive != 7 {
		t.Errorf("optimizer = %+v", c.Optimizer)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "server: [not a map")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "environment: staging\n")
	t.Setenv("PORT", "7000")
	t.Setenv("MIN_OFFER_AMOUNT", "10")
	t.Setenv("MAX_ELECTRONICS_OFFER", "1500")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("POSTGRES_HOST", "db")

	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Environment != "staging" || c.Server.Port != 7000 {
		t.Errorf("env=%s port=%d", c.Environment, c.Server.Port)
	}
	if c.Pricing.MinOfferFloor != 10 || c.Pricing.CategoryCeilings["Consumer Electronics"] != 1500 {
		t.Errorf("pricing = %+v", c.Pricing)
	}
	if !c.Kafka.Enabled || len(c.Kafka.Brokers) != 2 {
		t.Errorf("kafka enabled=%t brokers=%v", c.Kafka.Enabled, c.Kafka.Brokers)
	}
	if !c.Postgres.Enabled || c.Postgres.Host != "db" {
		t.Errorf("postgres = %+v", c.Postgres)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"negative floor", func(c *Config) { c.Pricing.MinOfferFloor = -1 }},
		{"ceiling below floor", func(c *Config) { c.Pricing.CategoryCeilings["Jewelry"] = 1 }},
		{"negative min days", func(c *Config) { c.Optimizer.MinDaysActive = -1 }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }},
		{"production without secret", func(c *Config) { c.Environment = "production" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	c := Default()
	c.Postgres.Password = "secret"
	want := "host=localhost port=5432 user=pawn password=secret dbname=pawn sslmode=disable"
	if got := c.PostgresDSN(); got != want {
		t.Errorf("dsn = %q, want %q", got, want)
	}
}
