package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"memecoin-signal-lab/internal/config"
	"memecoin-signal-lab/internal/history"
	"memecoin-signal-lab/internal/pricing"
	"memecoin-signal-lab/internal/reporting"
	"memecoin-signal-lab/internal/storage"
	chstore "memecoin-signal-lab/internal/storage/clickhouse"
	pgstore "memecoin-signal-lab/internal/storage/postgres"
	"memecoin-signal-lab/internal/vip"
)

func main() {
	envFile := flag.String("env", ".env", "Path to optional .env file")
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	windowDays := flag.Int("window-days", 0, "Trailing window in days (overrides HISTORY_WINDOW_DAYS)")
	patterns := flag.String("patterns", "", "Comma-separated pattern tags (default: all known)")
	top := flag.Int("top", 10, "Number of influencers to list")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fail("Error loading config: %v", err)
	}
	if cfg.PostgresDSN == "" || cfg.ClickHouseDSN == "" {
		fail("Error: POSTGRES_DSN and CLICKHOUSE_DSN are required")
	}
	if *windowDays <= 0 {
		*windowDays = cfg.WindowDays
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		fail("Error connecting to PostgreSQL: %v", err)
	}
	defer pool.Close()

	conn, err := chstore.NewConnWithDatabase(ctx, cfg.ClickHouseDSN, cfg.ClickHouseDatabase)
	if err != nil {
		fail("Error connecting to ClickHouse: %v", err)
	}
	defer conn.Close()

	var samples storage.PriceSampleStore = chstore.NewPriceSampleStore(conn)
	analyzer := history.NewAnalyzer(pgstore.NewAnalysisStore(pool), pricing.NewHistory(samples, pricing.HistoryOptions{}), history.Options{})
	tracker := vip.NewTracker(pgstore.NewVipStore(pool), vip.Options{})

	gen := reporting.NewGenerator(analyzer, tracker).WithTopInfluencers(*top)
	if *patterns != "" {
		gen = gen.WithPatterns(splitCSV(*patterns))
	}

	report, err := gen.Generate(ctx, *windowDays)
	if err != nil {
		fail("Error generating report: %v", err)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fail("Error creating output directory: %v", err)
	}

	mdPath := filepath.Join(*outputDir, "PATTERN_REPORT.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		fail("Error writing %s: %v", mdPath, err)
	}
	csvPath := filepath.Join(*outputDir, "pattern_stats.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.Patterns)), 0o644); err != nil {
		fail("Error writing %s: %v", csvPath, err)
	}

	fmt.Printf("Report written to %s and %s\n", mdPath, csvPath)
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
