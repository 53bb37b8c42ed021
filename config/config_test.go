package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, "https://www.vivareal.com.br", config.SiteBaseURL)
	assert.Equal(t, EngineFirecrawl, config.FetchEngine)
	assert.Equal(t, 2*time.Second, config.CrawlDelay)
	assert.Equal(t, 3*time.Second, config.GeocodeDelay)
	assert.Equal(t, 10, config.MaxPages)
	assert.Equal(t, 40.0, config.MinArea)
	assert.Equal(t, 45.0, config.MaxArea)
	assert.Equal(t, "", config.MemcacheAddr)
	assert.Equal(t, "", config.RedisAddr)
	assert.Equal(t, 1, config.RedisStreamCount)
	assert.Equal(t, filepath.Join("data", "processed", "listings.json"), config.ListingsPath())

	// Test with environment variables
	t.Setenv("FETCH_ENGINE", "Direct")
	t.Setenv("CRAWL_DELAY_SECONDS", "5")
	t.Setenv("MAX_PAGES", "3")
	t.Setenv("MIN_AREA", "60,5")
	t.Setenv("MAX_AREA", "80")
	t.Setenv("MEMCACHE_ADDR", "memcache.example.com:11211")
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("PROCESSED_DIR", "/tmp/processed")

	config = LoadConfig()
	assert.Equal(t, EngineDirect, config.FetchEngine)
	assert.Equal(t, 5*time.Second, config.CrawlDelay)
	assert.Equal(t, 3, config.MaxPages)
	assert.Equal(t, 60.5, config.MinArea)
	assert.Equal(t, 80.0, config.MaxArea)
	assert.Equal(t, "memcache.example.com:11211", config.MemcacheAddr)
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 2, config.RedisDB)
	assert.Equal(t, "/tmp/processed/listings_with_addresses.json", config.EnrichedListingsPath())
}

func TestLoadConfigIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("MAX_PAGES", "ten")
	t.Setenv("MIN_AREA", "forty")

	config := LoadConfig()
	assert.Equal(t, 10, config.MaxPages)
	assert.Equal(t, 40.0, config.MinArea)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := LoadConfig()
		c.FetchEngine = EngineDirect
		return c
	}

	assert.NoError(t, valid().Validate())

	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"firecrawl without key", func(c *Config) { c.FetchEngine = EngineFirecrawl; c.FirecrawlAPIKey = "" }},
		{"unknown engine", func(c *Config) { c.FetchEngine = "selenium" }},
		{"relative base url", func(c *Config) { c.SiteBaseURL = "www.vivareal.com.br" }},
		{"inverted range", func(c *Config) { c.MinArea = 50; c.MaxArea = 40 }},
		{"no pages", func(c *Config) { c.MaxPages = 0 }},
		{"negative delay", func(c *Config) { c.CrawlDelay = -time.Second }},
		{"zero streams", func(c *Config) { c.RedisAddr = "localhost:6379"; c.RedisStreamCount = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	c := valid()
	c.FetchEngine = EngineFirecrawl
	c.FirecrawlAPIKey = "fc-123"
	assert.NoError(t, c.Validate())
}
