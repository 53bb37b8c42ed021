package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Fetch engines understood by the crawler
const (
	EngineDirect    = "direct"
	EngineFirecrawl = "firecrawl"
	EngineChrome    = "chrome"
)

// Config represents the application configuration
type Config struct {
	// Target portal
	SiteBaseURL string

	// Fetching
	FetchEngine     string
	FirecrawlAPIKey string
	FirecrawlAPIURL string
	ChromeBin       string
	CrawlDelay      time.Duration
	MaxPages        int

	// Geocoding
	GoogleMapsAPIKey string
	NominatimURL     string
	GeocodeDelay     time.Duration
	GeocodeCacheTTL  time.Duration

	// Memcache configuration; empty means in-process cache
	MemcacheAddr string

	// Redis configuration; empty address disables publishing
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Research parameters
	MinArea        float64
	MaxArea        float64
	MinReportCount int

	// Directories
	RawDir       string
	ProcessedDir string
	ReportsDir   string
	ErrorLog     string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		SiteBaseURL:          getEnv("SITE_BASE_URL", "https://www.vivareal.com.br"),
		FetchEngine:          strings.ToLower(getEnv("FETCH_ENGINE", EngineFirecrawl)),
		FirecrawlAPIKey:      getEnv("FIRECRAWL_API_KEY", ""),
		FirecrawlAPIURL:      getEnv("FIRECRAWL_API_URL", "https://api.firecrawl.dev"),
		ChromeBin:            getEnv("CHROME_BIN", ""),
		CrawlDelay:           time.Duration(getEnvInt("CRAWL_DELAY_SECONDS", 2)) * time.Second,
		MaxPages:             getEnvInt("MAX_PAGES", 10),
		GoogleMapsAPIKey:     getEnv("GOOGLE_MAPS_API_KEY", ""),
		NominatimURL:         getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		GeocodeDelay:         time.Duration(getEnvInt("GEOCODE_DELAY_SECONDS", 3)) * time.Second,
		GeocodeCacheTTL:      time.Duration(getEnvInt("GEOCODE_CACHE_TTL_HOURS", 24*30)) * time.Hour,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "listings"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		MinArea:              getEnvFloat("MIN_AREA", 40),
		MaxArea:              getEnvFloat("MAX_AREA", 45),
		MinReportCount:       getEnvInt("MIN_REPORT_COUNT", 1),
		RawDir:               getEnv("RAW_DIR", filepath.Join("data", "raw")),
		ProcessedDir:         getEnv("PROCESSED_DIR", filepath.Join("data", "processed")),
		ReportsDir:           getEnv("REPORTS_DIR", "reports"),
		ErrorLog:             getEnv("ERROR_LOG", filepath.Join("data", "errors.log")),
		Environment:          getEnv("RESEARCH_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	switch c.FetchEngine {
	case EngineDirect, EngineChrome:
	case EngineFirecrawl:
		if c.FirecrawlAPIKey == "" {
			return fmt.Errorf("FIRECRAWL_API_KEY is required for the %s engine", EngineFirecrawl)
		}
	default:
		return fmt.Errorf("unknown fetch engine %q", c.FetchEngine)
	}

	if !strings.HasPrefix(c.SiteBaseURL, "http://") && !strings.HasPrefix(c.SiteBaseURL, "https://") {
		return fmt.Errorf("SITE_BASE_URL must be an absolute http(s) origin, got %q", c.SiteBaseURL)
	}
	if c.MinArea < 0 || c.MaxArea < c.MinArea {
		return fmt.Errorf("invalid area range %.1f-%.1f", c.MinArea, c.MaxArea)
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("MAX_PAGES must be at least 1, got %d", c.MaxPages)
	}
	if c.CrawlDelay < 0 || c.GeocodeDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.RedisAddr != "" && c.RedisStreamCount < 1 {
		return fmt.Errorf("REDIS_STREAM_COUNT must be at least 1, got %d", c.RedisStreamCount)
	}
	return nil
}

// ListingsPath returns the canonical parser output path
func (c *Config) ListingsPath() string {
	return filepath.Join(c.ProcessedDir, "listings.json")
}

// EnrichedListingsPath returns the enrichment output path
func (c *Config) EnrichedListingsPath() string {
	return filepath.Join(c.ProcessedDir, "listings_with_addresses.json")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		n, err := strconv.Atoi(value)
		if err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}
