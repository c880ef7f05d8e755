package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pool-gatekeeper/middleware/ratelimit"
	rlinfra "pool-gatekeeper/middleware/ratelimit/infra"
	"pool-gatekeeper/pool"
	"pool-gatekeeper/pool/application"
	"pool-gatekeeper/pool/domain"
	"pool-gatekeeper/pool/infra"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		registry domain.Registry
		catalog  domain.Catalog
		stats    domain.StatsStore
	)

	switch cfg.store {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			log.Fatalf("redis ping error: %v", err)
		}

		registry = infra.NewRedisRegistry(rdb, infra.WithRegistryPrefix(cfg.redisPrefix))
		redisCatalog := infra.NewRedisCatalog(rdb, infra.WithCatalogPrefix(cfg.redisPrefix))
		catalog = redisCatalog
		if cfg.statsEnabled {
			stats = infra.NewRedisStatsStore(rdb,
				infra.WithStatsPrefix(cfg.redisPrefix+":stats"),
				infra.WithStatsTTL(cfg.statsTTL),
				infra.WithStatsBucket(cfg.statsBucket),
			)
		}

		// Bootstrap opcional: provisiona o catálogo a partir do arquivo.
		if cfg.limitsFile != "" {
			limits, err := loadLimitsFile(cfg.limitsFile)
			if err != nil {
				log.Fatalf("limits file error: %v", err)
			}
			for _, l := range limits {
				if err := redisCatalog.Seed(ctx, l); err != nil {
					log.Fatalf("limits seed error: %v", err)
				}
			}
		}

	case "memory":
		memRegistry := infra.NewMemoryRegistry()
		memRegistry.StartJanitor(ctx)
		registry = memRegistry

		limits := defaultLimits()
		if cfg.limitsFile != "" {
			limits, err = loadLimitsFile(cfg.limitsFile)
			if err != nil {
				log.Fatalf("limits file error: %v", err)
			}
		}
		catalog, err = infra.NewMemoryCatalog(limits...)
		if err != nil {
			log.Fatalf("limits error: %v", err)
		}
		if cfg.statsEnabled {
			stats = infra.NewMemoryStatsStore()
		}

	default:
		log.Fatalf("invalid STORE %q (want memory or redis)", cfg.store)
	}

	coord := &application.Coordinator{
		Catalog:  catalog,
		Registry: registry,
		Stats:    stats,
		Estimator: application.WaitEstimator{
			MinWait: cfg.waitMin,
			MaxWait: cfg.waitMax,
		},
		TTL: cfg.reservationTTL,
	}

	h := pool.NewHandler(pool.Options{
		Coordinator: coord,
		RetryAfter:  cfg.retryAfter,
	})
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.apiConcurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.apiConcurrencyTimeout,
	})(h)
	if cfg.apiRateEnabled {
		limStore := rlinfra.NewStore(cfg.apiRateRPS, cfg.apiRateBurst)
		limStore.StartJanitor(ctx)
		h = ratelimit.Middleware(ratelimit.Options{
			Store:              limStore,
			KeyHeader:          cfg.apiKeyHeader,
			TrustXForwardedFor: cfg.trustXFF,
			RetryAfter:         cfg.retryAfter,
		})(h)
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("gatekeeper listening on %s (store=%s)", cfg.listenAddr, cfg.store)
	log.Printf("reservations: ttl=%s wait=[%s..%s]", cfg.reservationTTL, cfg.waitMin, cfg.waitMax)
	log.Printf("api protection: rate=%v rps=%.3f burst=%d keyHeader=%q concurrencyMax=%d",
		cfg.apiRateEnabled, cfg.apiRateRPS, cfg.apiRateBurst, cfg.apiKeyHeader, cfg.apiConcurrencyMax)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

type config struct {
	listenAddr string
	store      string

	redisAddr     string
	redisPassword string
	redisDB       int
	redisPrefix   string

	limitsFile     string
	reservationTTL time.Duration
	waitMin        time.Duration
	waitMax        time.Duration
	retryAfter     time.Duration

	statsEnabled bool
	statsTTL     time.Duration
	statsBucket  string

	apiRateEnabled        bool
	apiRateRPS            float64
	apiRateBurst          int
	apiKeyHeader          string
	trustXFF              bool
	apiConcurrencyMax     int
	apiConcurrencyTimeout time.Duration
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.store = strings.ToLower(getenvDefault("STORE", "memory"))

	cfg.redisAddr = os.Getenv("REDIS_ADDR")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.redisPrefix = getenvDefault("REDIS_PREFIX", "pool")

	cfg.limitsFile = os.Getenv("LIMITS_FILE")
	cfg.reservationTTL = getenvDurationDefault("RESERVATION_TTL", 24*time.Hour)
	cfg.waitMin = getenvDurationDefault("WAIT_MIN", application.DefaultMinWait)
	cfg.waitMax = getenvDurationDefault("WAIT_MAX", application.DefaultMaxWait)
	cfg.retryAfter = getenvDurationDefault("RETRY_AFTER", 1*time.Second)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", true)
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")

	cfg.apiRateEnabled = getenvBoolDefault("API_RATE_ENABLED", true)
	cfg.apiRateRPS = getenvFloatDefault("API_RATE_RPS", 50)
	cfg.apiRateBurst = getenvIntDefault("API_RATE_BURST", 100)
	cfg.apiKeyHeader = getenvDefault("API_KEY_HEADER", "X-Caller-Id")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.apiConcurrencyMax = getenvIntDefault("API_CONCURRENCY_MAX", 200)
	cfg.apiConcurrencyTimeout = getenvDurationDefault("API_CONCURRENCY_TIMEOUT", 0)

	if cfg.store == "redis" && strings.TrimSpace(cfg.redisAddr) == "" {
		return config{}, errors.New("REDIS_ADDR is required when STORE=redis")
	}
	if cfg.reservationTTL <= 0 {
		return config{}, errors.New("RESERVATION_TTL must be > 0")
	}
	if cfg.waitMax < cfg.waitMin {
		return config{}, errors.New("WAIT_MAX must be >= WAIT_MIN")
	}
	if cfg.apiRateEnabled && (cfg.apiRateRPS <= 0 || cfg.apiRateBurst <= 0) {
		return config{}, errors.New("API_RATE_RPS and API_RATE_BURST must be > 0")
	}
	return cfg, nil
}

// defaultLimits replica o provisionamento padrão do ambiente de
// desenvolvimento: ADW (recurso 4) com teto de 1000 conexões.
func defaultLimits() []domain.Limits {
	return []domain.Limits{{
		ResourceID:       4,
		Name:             "ADW",
		DBType:           "oracle",
		MaxConnections:   1000,
		ThresholdPercent: 95,
		DefaultParallel:  8,
		MinParallel:      2,
	}}
}

type limitsFileEntry struct {
	ResourceID       int    `json:"resource_id"`
	Name             string `json:"name"`
	DBType           string `json:"db_type"`
	MaxConnections   int    `json:"max_connections"`
	ThresholdPercent int    `json:"threshold_percent"`
	DefaultParallel  int    `json:"default_parallelism"`
	MinParallel      int    `json:"min_parallelism"`
}

func loadLimitsFile(path string) ([]domain.Limits, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []limitsFileEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make([]domain.Limits, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.Limits{
			ResourceID:       e.ResourceID,
			Name:             e.Name,
			DBType:           e.DBType,
			MaxConnections:   e.MaxConnections,
			ThresholdPercent: e.ThresholdPercent,
			DefaultParallel:  e.DefaultParallel,
			MinParallel:      e.MinParallel,
		})
	}
	return out, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
