package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"memecoin-signal-lab/internal/config"
	"memecoin-signal-lab/internal/feed"
	"memecoin-signal-lab/internal/followup"
	"memecoin-signal-lab/internal/history"
	"memecoin-signal-lab/internal/inference"
	"memecoin-signal-lab/internal/matcher"
	"memecoin-signal-lab/internal/orchestrator"
	"memecoin-signal-lab/internal/pricing"
	"memecoin-signal-lab/internal/quickfilter"
	sig "memecoin-signal-lab/internal/signal"
	"memecoin-signal-lab/internal/storage"
	chstore "memecoin-signal-lab/internal/storage/clickhouse"
	"memecoin-signal-lab/internal/storage/memory"
	pgstore "memecoin-signal-lab/internal/storage/postgres"
	"memecoin-signal-lab/internal/vip"
)

func main() {
	envFile := flag.String("env", ".env", "Path to optional .env file")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage even if DSNs are set")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for health/metrics/status (overrides METRICS_ADDR)")
	feedURL := flag.String("feed-url", "", "Post feed WebSocket URL (overrides FEED_URL)")
	flag.Parse()

	logger := log.New(os.Stdout, "[monitor] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Fatalf("Config: %v", err)
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *feedURL != "" {
		cfg.FeedURL = *feedURL
	}
	if *useMemory {
		cfg.PostgresDSN = ""
		cfg.ClickHouseDSN = ""
		cfg.RedisAddr = ""
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		logger.Printf("Received signal %v, shutting down...", s)
		cancel()

		select {
		case s := <-sigCh:
			logger.Printf("Received second signal %v, forcing exit", s)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// stores groups the storage backends selected by config.
type stores struct {
	analyses     storage.AnalysisStore
	followUps    storage.FollowUpStore
	vips         storage.VipStore
	graph        storage.GraphStore
	priceSamples storage.PriceSampleStore
	closers      []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (*stores, error) {
	s := &stores{
		analyses:     memory.NewAnalysisStore(),
		followUps:    memory.NewFollowUpStore(),
		vips:         memory.NewVipStore(),
		graph:        memory.NewGraphStore(),
		priceSamples: memory.NewPriceSampleStore(),
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		s.analyses = pgstore.NewAnalysisStore(pool)
		s.followUps = pgstore.NewFollowUpStore(pool)
		s.vips = pgstore.NewVipStore(pool)
		logger.Println("Using PostgreSQL for analyses, follow-ups and VIP records")
	} else {
		logger.Println("Using in-memory analyses, follow-ups and VIP records")
	}

	if cfg.ClickHouseDSN != "" {
		conn, err := chstore.NewConnWithDatabase(ctx, cfg.ClickHouseDSN, cfg.ClickHouseDatabase)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("connect clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { conn.Close() })
		s.graph = chstore.NewGraphStore(conn)
		s.priceSamples = chstore.NewPriceSampleStore(conn)
		logger.Println("Using ClickHouse for graph and price samples")
	} else {
		logger.Println("Using in-memory graph and price samples")
	}

	return s, nil
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// Market data: cache -> recorder -> fallback(dexscreener).
	var cache pricing.Cache = pricing.NewMemoryCache()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		cache = pricing.NewRedisCache(rdb, "")
		logger.Printf("Using Redis price cache at %s", cfg.RedisAddr)
	}

	dex := pricing.NewDexScreenerClient(cfg.DexScreenerURL)
	live := pricing.NewFallbackProvider(logger, dex)
	recorder := pricing.NewRecordingProvider(live, st.priceSamples, "dexscreener", logger)
	prices := pricing.NewCachedProvider(recorder, cache, cfg.PriceCacheTTL, logger)

	analyzer := history.NewAnalyzer(st.analyses, pricing.NewHistory(st.priceSamples, pricing.HistoryOptions{}), history.Options{
		Logger: logger,
	})

	tracker := vip.NewTracker(st.vips, vip.Options{Logger: logger})
	seeded, err := tracker.Seed(ctx)
	if err != nil {
		return fmt.Errorf("seed vip records: %w", err)
	}
	logger.Printf("Seeded %d VIP records", seeded)

	scheduler := followup.NewScheduler(st.followUps, analyzer, tracker, followup.Options{
		Delay:              cfg.FollowUpDelay,
		CheckInterval:      cfg.FollowUpInterval,
		MaxAttempts:        cfg.FollowUpMaxAttempts,
		MinImpactThreshold: cfg.MinImpactThreshold,
		Retention:          cfg.FollowUpRetention,
		Refresher:          recorder,
		Logger:             logger,
	})

	gateway := inference.NewHTTPGateway(cfg.InferenceEndpoint, cfg.InferenceAPIKey,
		inference.WithModel(cfg.InferenceModel),
		inference.WithVisionModel(cfg.VisionModel),
		inference.WithTimeout(cfg.InferenceTimeout),
		inference.WithMinGap(cfg.InferenceMinGap),
	)
	m := matcher.New(gateway, matcher.Options{
		Filter: quickfilter.New(quickfilter.Options{
			LikesThreshold:    cfg.LikesThreshold,
			RetweetsThreshold: cfg.RetweetsThreshold,
		}),
		InferenceTimeout: cfg.InferenceTimeout,
		Logger:           logger,
	})

	var publisher sig.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := sig.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		logger.Printf("Publishing signals to Kafka topic %s", cfg.KafkaTopic)
	}

	orch := orchestrator.New(orchestrator.Options{
		Matcher:           m,
		Vip:               tracker,
		History:           analyzer,
		Prices:            prices,
		Graph:             st.graph,
		Analyses:          st.analyses,
		FollowUps:         scheduler,
		Publisher:         publisher,
		ScheduleThreshold: cfg.ScheduleThreshold,
		SignalThreshold:   cfg.SignalThreshold,
		WindowDays:        cfg.WindowDays,
		Logger:            logger,
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Run(ctx)
	})

	if cfg.FeedURL != "" {
		src := feed.NewWSSource(cfg.FeedURL, cfg.FeedHandles, nil, logger)
		runner := feed.NewRunner(src, orch, feed.RunnerOptions{
			Workers: cfg.Workers,
			Images:  gateway,
			Logger:  logger,
		})
		g.Go(func() error {
			return runner.Run(ctx)
		})
		logger.Printf("Consuming posts from %s", cfg.FeedURL)
	} else {
		logger.Println("No feed URL configured; accepting posts via POST /analyze only")
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr: cfg.MetricsAddr,
			Handler: newMux(&apiServer{
				analyses: orch,
				vips:     tracker,
				started:  time.Now(),
				logger:   logger,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Printf("Starting HTTP server on %s", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
