package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Search   SearchCriteria       `yaml:"search_criteria"`
	Scraper  ScraperSettings      `yaml:"scraper_settings"`
	Notify   NotificationSettings `yaml:"notification_settings"`
	Database DatabaseSettings     `yaml:"database_settings"`
}

// Range is an inclusive numeric range. A nil bound means unbounded on that
// side; both nil means the field is not filtered at all.
type Range struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

type IntRange struct {
	Min *int `yaml:"min"`
	Max *int `yaml:"max"`
}

func (r Range) Unbounded() bool    { return r.Min == nil && r.Max == nil }
func (r IntRange) Unbounded() bool { return r.Min == nil && r.Max == nil }

type SearchCriteria struct {
	Location      string   `yaml:"location"`
	Neighborhoods []string `yaml:"neighborhoods"`
	Price         Range    `yaml:"price_range"`
	Bedrooms      IntRange `yaml:"bedrooms"`
	Bathrooms     Range    `yaml:"bathrooms"`
	SquareFeet    IntRange `yaml:"square_feet"`
}

type ScraperSettings struct {
	Fetcher          string `yaml:"fetcher"` // "http" or "browser"
	MaxRetries       int    `yaml:"max_retries"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	PageDelaySeconds int    `yaml:"page_delay_seconds"`
	AreaDelaySeconds int    `yaml:"area_delay_seconds"`
	MaxPages         int    `yaml:"max_pages"`
	UserAgent        string `yaml:"user_agent"`
	ProxyURL         string `yaml:"proxy_url"`
}

func (s ScraperSettings) Timeout() time.Duration   { return time.Duration(s.TimeoutSeconds) * time.Second }
func (s ScraperSettings) PageDelay() time.Duration { return time.Duration(s.PageDelaySeconds) * time.Second }
func (s ScraperSettings) AreaDelay() time.Duration { return time.Duration(s.AreaDelaySeconds) * time.Second }

type NotificationSettings struct {
	Enabled     bool   `yaml:"enabled"`
	Type        string `yaml:"notification_type"` // "console" or "sms"
	MaxPerBatch int    `yaml:"max_listings_per_notification"`
}

type DatabaseSettings struct {
	Driver        string `yaml:"driver"` // "sqlite" or "postgres"
	Path          string `yaml:"path"`
	URL           string `yaml:"url"`
	RetentionDays int    `yaml:"retention_days"`
}

func defaults() *Config {
	return &Config{
		Scraper: ScraperSettings{
			Fetcher:          "http",
			MaxRetries:       3,
			TimeoutSeconds:   30,
			PageDelaySeconds: 3,
			AreaDelaySeconds: 5,
			MaxPages:         3,
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		},
		Notify: NotificationSettings{
			Enabled:     true,
			Type:        "console",
			MaxPerBatch: 10,
		},
		Database: DatabaseSettings{
			Driver:        "sqlite",
			Path:          "data/listings.db",
			RetentionDays: 30,
		},
	}
}

// Load reads the YAML config at path, applying environment overrides on
// top. A missing file is an error; malformed criteria are caught by
// Validate so they fail at startup, not per listing.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	if c.Database.URL != "" && os.Getenv("DATABASE_URL") != "" {
		c.Database.Driver = "postgres"
	}
	c.Scraper.Fetcher = getEnv("FETCHER", c.Scraper.Fetcher)
	c.Scraper.ProxyURL = getEnv("PROXY_URL", c.Scraper.ProxyURL)
	c.Scraper.MaxRetries = getEnvInt("MAX_RETRIES", c.Scraper.MaxRetries)
	c.Scraper.TimeoutSeconds = getEnvInt("TIMEOUT_SECONDS", c.Scraper.TimeoutSeconds)
}

func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Search.Location) == "" {
		errs = append(errs, "search_criteria.location is required")
	}
	if err := checkRange("price_range", c.Search.Price); err != "" {
		errs = append(errs, err)
	}
	if err := checkIntRange("bedrooms", c.Search.Bedrooms); err != "" {
		errs = append(errs, err)
	}
	if err := checkRange("bathrooms", c.Search.Bathrooms); err != "" {
		errs = append(errs, err)
	}
	if err := checkIntRange("square_feet", c.Search.SquareFeet); err != "" {
		errs = append(errs, err)
	}
	if c.Scraper.MaxRetries < 1 {
		errs = append(errs, "scraper_settings.max_retries must be at least 1")
	}
	switch c.Scraper.Fetcher {
	case "http", "browser":
	default:
		errs = append(errs, fmt.Sprintf("scraper_settings.fetcher %q is not supported", c.Scraper.Fetcher))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("database_settings.driver %q is not supported", c.Database.Driver))
	}
	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		errs = append(errs, "database_settings.url is required for the postgres driver")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func checkRange(name string, r Range) string {
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return fmt.Sprintf("search_criteria.%s: min %v is greater than max %v", name, *r.Min, *r.Max)
	}
	return ""
}

func checkIntRange(name string, r IntRange) string {
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return fmt.Sprintf("search_criteria.%s: min %d is greater than max %d", name, *r.Min, *r.Max)
	}
	return ""
}

// FilterSummary renders the active criteria for the run banner.
func (s SearchCriteria) FilterSummary() string {
	parts := []string{"Location: " + s.Location}
	if len(s.Neighborhoods) > 0 {
		parts = append(parts, "Neighborhoods: "+strings.Join(s.Neighborhoods, ", "))
	}
	if p := formatRange("Price", "$", s.Price); p != "" {
		parts = append(parts, p)
	}
	if p := formatIntRange("Bedrooms", s.Bedrooms); p != "" {
		parts = append(parts, p)
	}
	if p := formatRange("Bathrooms", "", s.Bathrooms); p != "" {
		parts = append(parts, p)
	}
	if p := formatIntRange("Sq Ft", s.SquareFeet); p != "" {
		parts = append(parts, p)
	}
	return strings.Join(parts, " | ")
}

func formatRange(label, unit string, r Range) string {
	switch {
	case r.Min != nil && r.Max != nil:
		return fmt.Sprintf("%s: %s%g - %s%g", label, unit, *r.Min, unit, *r.Max)
	case r.Min != nil:
		return fmt.Sprintf("%s: %s%g+", label, unit, *r.Min)
	case r.Max != nil:
		return fmt.Sprintf("%s: up to %s%g", label, unit, *r.Max)
	}
	return ""
}

func formatIntRange(label string, r IntRange) string {
	switch {
	case r.Min != nil && r.Max != nil:
		return fmt.Sprintf("%s: %d - %d", label, *r.Min, *r.Max)
	case r.Min != nil:
		return fmt.Sprintf("%s: %d+", label, *r.Min)
	case r.Max != nil:
		return fmt.Sprintf("%s: up to %d", label, *r.Max)
	}
	return ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
