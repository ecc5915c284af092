// Package config loads lawscope configuration from YAML, applies defaults and validates it.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/umputun/lawscope/pkg/domain"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server" jsonschema:"description=Server configuration"`
	Database  DatabaseConfig  `yaml:"database" json:"database" jsonschema:"description=Database configuration"`
	Converter ConverterConfig `yaml:"converter" json:"converter" jsonschema:"description=RSS to JSON converter service"`
	Feeds     []Feed          `yaml:"feeds" json:"feeds" jsonschema:"description=Feed sources to ingest"`
	Courts    []string        `yaml:"courts" json:"courts" jsonschema:"description=Recognized high court names"`
	Schedule  ScheduleConfig  `yaml:"schedule" json:"schedule" jsonschema:"description=Ingestion schedule"`
	View      ViewConfig      `yaml:"view" json:"view" jsonschema:"description=View and ranking settings"`
	Offline   OfflineConfig   `yaml:"offline" json:"offline" jsonschema:"description=Offline caching proxy"`
}

// ServerConfig is the HTTP server section
type ServerConfig struct {
	Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	BaseURL string        `yaml:"base_url" json:"base_url" jsonschema:"default=http://localhost:8080,description=Public base URL used in generated feeds"`
}

// DatabaseConfig is the sqlite section
type DatabaseConfig struct {
	DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:lawscope.db?cache=shared&mode=rwc&_txlock=immediate,description=Database connection string"`
	MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
}

// ConverterConfig is the feed converter section
type ConverterConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint" jsonschema:"default=https://api.rss2json.com/v1/api.json,description=Converter endpoint taking rss_url query parameter"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=0,description=Per request timeout, 0 means none"`
}

// Feed is a single feed source
type Feed struct {
	URL  string `yaml:"url" json:"url" jsonschema:"required,minLength=1,description=Feed URL"`
	Name string `yaml:"name" json:"name" jsonschema:"description=Display name, defaults to URL"`
}

// ScheduleConfig is the ingestion section
type ScheduleConfig struct {
	UpdateInterval time.Duration `yaml:"update_interval" json:"update_interval" jsonschema:"default=5m,description=Interval between ingestion runs"`
	ArchiveLimit   int           `yaml:"archive_limit" json:"archive_limit" jsonschema:"default=300,minimum=1,description=Newest items loaded into the working set"`
	MaxWorkers     int           `yaml:"max_workers" json:"max_workers" jsonschema:"default=0,description=Concurrent feed fetches, 0 fetches all feeds at once"`
}

// ViewConfig is the ranking and display section
type ViewConfig struct {
	RecencyDays       int           `yaml:"recency_days" json:"recency_days" jsonschema:"default=7,minimum=1,description=Calendar days in the recency window"`
	TopStories        int           `yaml:"top_stories" json:"top_stories" jsonschema:"default=3,minimum=1,description=Number of top stories"`
	RotationInterval  time.Duration `yaml:"rotation_interval" json:"rotation_interval" jsonschema:"default=50s,description=Top story rotation interval"`
	BreakingWindow    time.Duration `yaml:"breaking_window" json:"breaking_window" jsonschema:"default=5h,description=Age under which a same-day item is breaking"`
	DescriptionLength int           `yaml:"description_length" json:"description_length" jsonschema:"default=180,minimum=1,description=Description length in characters"`
}

// OfflineConfig is the offline caching proxy section
type OfflineConfig struct {
	Listen         string   `yaml:"listen" json:"listen" jsonschema:"default=:8081,description=Proxy listen address"`
	Upstream       string   `yaml:"upstream" json:"upstream" jsonschema:"default=http://localhost:8080,description=Upstream lawscope server"`
	CachePrefix    string   `yaml:"cache_prefix" json:"cache_prefix" jsonschema:"default=lni,description=Cache partition name prefix"`
	Version        string   `yaml:"version" json:"version" jsonschema:"default=v2,description=Cache version, change to force an upgrade"`
	StaticAssets   []string `yaml:"static_assets" json:"static_assets" jsonschema:"description=App shell assets cached on install"`
	Shell          string   `yaml:"shell" json:"shell" jsonschema:"default=/index.html,description=Navigation fallback when offline"`
	WaitForMessage bool     `yaml:"wait_for_message" json:"wait_for_message" jsonschema:"default=false,description=New cache version waits for a SKIP_WAITING message instead of activating at once"`
}

// DefaultFeeds are the legal news sources ingested when no feeds are configured
var DefaultFeeds = []Feed{
	{URL: "https://www.barandbench.com/feed", Name: "Bar & Bench"},
	{URL: "https://www.livelaw.in/rss/law", Name: "LiveLaw"},
	{URL: "https://www.scconline.com/blog/post/category/news/feed/", Name: "SCC Online"},
	{URL: "https://indialegallive.com/feed/", Name: "India Legal"},
	{URL: "https://lawbeat.in/rss.xml", Name: "LawBeat"},
	{URL: "https://www.latestlaws.com/feed/", Name: "LatestLaws"},
}

// Load reads configuration from a YAML file. Empty path returns defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		return nil, fmt.Errorf("verify config: %w", err)
	}

	return &cfg, nil
}

// Default returns configuration with all defaults applied
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	// server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:8080"
	}

	// database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:lawscope.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	// converter, zero timeout stays as is
	if cfg.Converter.Endpoint == "" {
		cfg.Converter.Endpoint = "https://api.rss2json.com/v1/api.json"
	}

	// feeds and courts
	if len(cfg.Feeds) == 0 {
		cfg.Feeds = append([]Feed(nil), DefaultFeeds...)
	}
	for i := range cfg.Feeds {
		if cfg.Feeds[i].Name == "" {
			cfg.Feeds[i].Name = cfg.Feeds[i].URL
		}
	}
	if len(cfg.Courts) == 0 {
		cfg.Courts = append([]string(nil), domain.HighCourts...)
	}

	// schedule
	if cfg.Schedule.UpdateInterval == 0 {
		cfg.Schedule.UpdateInterval = 5 * time.Minute
	}
	if cfg.Schedule.ArchiveLimit == 0 {
		cfg.Schedule.ArchiveLimit = 300
	}

	// view
	if cfg.View.RecencyDays == 0 {
		cfg.View.RecencyDays = 7
	}
	if cfg.View.TopStories == 0 {
		cfg.View.TopStories = 3
	}
	if cfg.View.RotationInterval == 0 {
		cfg.View.RotationInterval = 50 * time.Second
	}
	if cfg.View.BreakingWindow == 0 {
		cfg.View.BreakingWindow = 5 * time.Hour
	}
	if cfg.View.DescriptionLength == 0 {
		cfg.View.DescriptionLength = 180
	}

	// offline proxy
	if cfg.Offline.Listen == "" {
		cfg.Offline.Listen = ":8081"
	}
	if cfg.Offline.Upstream == "" {
		cfg.Offline.Upstream = "http://localhost:8080"
	}
	if cfg.Offline.CachePrefix == "" {
		cfg.Offline.CachePrefix = "lni"
	}
	if cfg.Offline.Version == "" {
		cfg.Offline.Version = "v2"
	}
	if len(cfg.Offline.StaticAssets) == 0 {
		cfg.Offline.StaticAssets = []string{"/", "/index.html", "/style.css", "/app.js"}
	}
	if cfg.Offline.Shell == "" {
		cfg.Offline.Shell = "/index.html"
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}
	if _, err := url.ParseRequestURI(cfg.Server.BaseURL); err != nil {
		return fmt.Errorf("server.base_url is invalid: %w", err)
	}
	if _, err := url.ParseRequestURI(cfg.Converter.Endpoint); err != nil {
		return fmt.Errorf("converter.endpoint is invalid: %w", err)
	}
	if cfg.Converter.Timeout < 0 {
		return fmt.Errorf("converter.timeout must be non-negative")
	}

	seen := map[string]bool{}
	for i, f := range cfg.Feeds {
		if f.URL == "" {
			return fmt.Errorf("feeds[%d].url is required", i)
		}
		if seen[f.URL] {
			return fmt.Errorf("feeds[%d].url %q is duplicated", i, f.URL)
		}
		seen[f.URL] = true
	}

	if cfg.Schedule.UpdateInterval < time.Second {
		return fmt.Errorf("schedule.update_interval must be at least 1 second")
	}
	if cfg.Schedule.ArchiveLimit < 1 {
		return fmt.Errorf("schedule.archive_limit must be at least 1")
	}
	if cfg.Schedule.MaxWorkers < 0 {
		return fmt.Errorf("schedule.max_workers must be non-negative")
	}

	if cfg.View.RecencyDays < 1 {
		return fmt.Errorf("view.recency_days must be at least 1")
	}
	if cfg.View.TopStories < 1 {
		return fmt.Errorf("view.top_stories must be at least 1")
	}
	if cfg.View.RotationInterval < time.Second {
		return fmt.Errorf("view.rotation_interval must be at least 1 second")
	}
	if cfg.View.BreakingWindow < 0 {
		return fmt.Errorf("view.breaking_window must be non-negative")
	}
	if cfg.View.DescriptionLength < 1 {
		return fmt.Errorf("view.description_length must be at least 1")
	}

	if _, err := url.ParseRequestURI(cfg.Offline.Upstream); err != nil {
		return fmt.Errorf("offline.upstream is invalid: %w", err)
	}
	return nil
}

// Sources returns configured feeds as domain feed sources
func (c *Config) Sources() []domain.FeedSource {
	res := make([]domain.FeedSource, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		res = append(res, domain.FeedSource{URL: f.URL, Name: f.Name})
	}
	return res
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}
