package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/subosito/gotenv"
)

const (
	defaultHTTPAddr       = ":8080"
	defaultGRPCAddr       = ":50051"
	defaultRedisAddr      = "localhost:6379"
	defaultMySQLDSN       = "root:root@tcp(localhost:3306)/rocketshoes?parseTime=true"
	defaultCartKey        = "@RocketShoes:cart"
	defaultCartFile       = ".rocketshoes/cart.json"
	defaultCatalogTimeout = 5 * time.Second
	defaultLogLevel       = "info"
	defaultSessionLimit   = 10000
	defaultSessionTTL     = 30 * time.Minute
)

type Config struct {
	HTTPAddr       string
	GRPCAddr       string
	RedisAddr      string
	MySQLDSN       string
	CatalogAPIURL  string
	CatalogTimeout time.Duration
	CartKey        string
	CartFile       string
	LogLevel       string
	OTLPEndpoint   string
	SessionLimit   int
	SessionTTL     time.Duration
}

// Load reads an optional .env file from the working directory and then the
// process environment. Variables already set in the environment win.
func Load() (Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		HTTPAddr:      getenv("HTTP_ADDR", defaultHTTPAddr),
		GRPCAddr:      getenv("GRPC_ADDR", defaultGRPCAddr),
		RedisAddr:     getenv("REDIS_ADDR", defaultRedisAddr),
		MySQLDSN:      getenv("MYSQL_DSN", defaultMySQLDSN),
		CatalogAPIURL: os.Getenv("CATALOG_API_URL"),
		CartKey:       getenv("CART_KEY", defaultCartKey),
		CartFile:      getenv("CART_FILE", defaultCartFile),
		LogLevel:      getenv("LOG_LEVEL", defaultLogLevel),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var err error
	if cfg.CatalogTimeout, err = durationEnv("CATALOG_TIMEOUT", defaultCatalogTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", defaultSessionTTL); err != nil {
		return Config{}, err
	}

	cfg.SessionLimit = defaultSessionLimit
	if v := os.Getenv("SESSION_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("SESSION_LIMIT: %w", err)
		}
		if n <= 0 {
			return Config{}, fmt.Errorf("SESSION_LIMIT must be positive, got %s", v)
		}
		cfg.SessionLimit = n
	}

	return cfg, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
