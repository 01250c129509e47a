package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	OpenWeatherLang    string

	// Outbound provider calls.
	HTTPTimeout        time.Duration
	ProviderMaxRetries int // 0 = fail on the first error

	// Weather cache.
	CacheTTL      time.Duration
	CacheCapacity int

	// Key-value persistence backend: memory, sqlite or postgres.
	StoreDriver string
	StoreDSN    string

	// RefreshInterval controls how often the displayed location is refreshed (0 = never).
	RefreshInterval time.Duration

	// DefaultCity is fetched at startup when set.
	DefaultCity string

	Port   string
	WSPort int // 0 disables the live push server
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.OpenWeatherBaseURL = getenvDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org")
	cfg.OpenWeatherLang = getenvDefault("OPENWEATHER_LANG", "en")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	cfg.ProviderMaxRetries = getenvInt("PROVIDER_MAX_RETRIES", 0)
	if cfg.ProviderMaxRetries < 0 {
		return nil, fmt.Errorf("invalid PROVIDER_MAX_RETRIES: must not be negative")
	}

	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", "10m"); err != nil {
		return nil, err
	}
	cfg.CacheCapacity = getenvInt("CACHE_CAPACITY", 50)
	if cfg.CacheCapacity <= 0 {
		return nil, fmt.Errorf("invalid CACHE_CAPACITY: must be positive")
	}

	cfg.StoreDriver = getenvDefault("STORE_DRIVER", "memory")
	cfg.StoreDSN = getenvDefault("STORE_DSN", defaultDSN(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case "memory", "sqlite":
	case "postgres":
		if cfg.StoreDSN == "" {
			return nil, fmt.Errorf("STORE_DSN is required for the postgres store")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "30m"); err != nil {
		return nil, err
	}

	cfg.DefaultCity = os.Getenv("DEFAULT_CITY")
	cfg.Port = getenvDefault("PORT", "8080")
	cfg.WSPort = getenvInt("WS_PORT", 0)

	return cfg, nil
}

func defaultDSN(driver string) string {
	if driver == "sqlite" {
		return "weather.db"
	}
	return ""
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
