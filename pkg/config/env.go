package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvLocal       = "local"

	DefaultAPIBaseURL = "https://ekb-backend.onrender.com"
)

// Config is the runtime configuration of the storefront client.
type Config struct {
	AppEnv     string
	APIBaseURL string

	// DevToken is a sentinel bearer token used only outside production
	// when no real credential is available.
	DevToken string
	// AdminEmails is the advisory allow-list used to mark a profile as admin.
	AdminEmails []string

	TaxPercent  decimal.Decimal
	ShippingFee decimal.Decimal

	StorageBackend string
	StoragePath    string
	RedisAddr      string
	RedisPassword  string
	MySQLDSN       string

	HTTPTimeout          time.Duration
	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
	WatchInterval        time.Duration
}

// Production reports whether the dev token fallback must be disabled.
func (c Config) Production() bool {
	return c.AppEnv == EnvProduction
}

// LoadEnv loads environment variables from .env.local if APP_ENV is "local"
func LoadEnv() {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = EnvDevelopment // Default to development if not set
		os.Setenv("APP_ENV", appEnv)
	}

	if appEnv == EnvLocal {
		err := godotenv.Load(".env.local") // Assumes .env.local exists where the client is run
		if err != nil {
			log.Printf("Warning: .env.local file not found, or error loading: %v. Relying on system environment variables.", err)
		} else {
			log.Println("Loaded .env.local for local development.")
		}
	}
}

// Load reads Config from the environment. LoadEnv should be called first.
func Load() Config {
	return Config{
		AppEnv:               getenv("APP_ENV", EnvDevelopment),
		APIBaseURL:           strings.TrimRight(getenv("API_BASE_URL", DefaultAPIBaseURL), "/"),
		DevToken:             os.Getenv("DEV_TOKEN"),
		AdminEmails:          splitList(os.Getenv("ADMIN_EMAILS")),
		TaxPercent:           getDecimal("TAX_PERCENT", decimal.NewFromInt(18)),
		ShippingFee:          getDecimal("SHIPPING_FEE", decimal.Zero),
		StorageBackend:       strings.ToLower(getenv("STORAGE_BACKEND", "file")),
		StoragePath:          getenv("STORAGE_PATH", defaultStoragePath()),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		MySQLDSN:             os.Getenv("MYSQL_DSN"),
		HTTPTimeout:          getDuration("HTTP_TIMEOUT", 15*time.Second),
		RetryMaxAttempts:     getInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialInterval: getDuration("RETRY_INITIAL_INTERVAL", 500*time.Millisecond),
		WatchInterval:        getDuration("WATCH_INTERVAL", 2*time.Second),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func getDecimal(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		log.Printf("Warning: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".storefront", "state.json")
	}
	return filepath.Join(home, ".storefront", "state.json")
}
