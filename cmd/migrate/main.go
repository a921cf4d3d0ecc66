package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"memecoin-signal-lab/internal/config"
	"memecoin-signal-lab/internal/storage/migrations"
	pgstore "memecoin-signal-lab/internal/storage/postgres"
	"memecoin-signal-lab/internal/vip"
)

func main() {
	envFile := flag.String("env", ".env", "Path to optional .env file")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides POSTGRES_DSN)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (overrides CLICKHOUSE_DSN)")
	seed := flag.Bool("seed", true, "Seed pre-configured VIP records after migrating PostgreSQL")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	logger := log.New(os.Stdout, "[migrate] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Fatalf("Config: %v", err)
	}
	if *postgresDSN != "" {
		cfg.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.ClickHouseDSN = *clickhouseDSN
	}
	if cfg.PostgresDSN == "" && cfg.ClickHouseDSN == "" {
		logger.Fatal("Nothing to migrate: set POSTGRES_DSN and/or CLICKHOUSE_DSN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatalf("Connect postgres: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Postgres migrations: %v", err)
		}
		logger.Println("PostgreSQL migrations applied")

		if *seed {
			n, err := vip.NewTracker(pgstore.NewVipStore(pool), vip.Options{Logger: logger}).Seed(ctx)
			if err != nil {
				logger.Fatalf("Seed VIP records: %v", err)
			}
			logger.Printf("Seeded %d VIP records", n)
		}
	}

	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			logger.Fatalf("ClickHouse migrations: %v", err)
		}
		defer conn.Close()
		logger.Println("ClickHouse migrations applied")
	}
}
