package main

import (
	"flag"
	"log"
	"os"

	"PawnPrice/internal/di"
	"PawnPrice/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s port=%d fraud=%t redis=%t kafka=%t clickhouse=%t postgres=%t",
		cfg.Environment, cfg.Server.Port, cfg.Fraud.Enabled,
		cfg.Redis.Enabled, cfg.Kafka.Enabled, cfg.ClickHouse.Enabled, cfg.Postgres.Enabled)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Blocks until SIGINT/SIGTERM.
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
