package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production" - controls test URL validation
	Server      ServerConfig    `toml:"server"`
	Queue       QueueConfig     `toml:"queue"`
	Storage     StorageConfig   `toml:"storage"`
	Fetch       FetchConfig     `toml:"fetch"`
	Crawl       CrawlConfig     `toml:"crawl"`
	Logging     LoggingConfig   `toml:"logging"`
	Workers     WorkersConfig   `toml:"workers"`
	Extract     ExtractConfig   `toml:"extract"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// QueueConfig governs the Badger-backed job queue.
type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g. "1s" - how often workers poll for messages
	Concurrency       int    `toml:"concurrency"`        // global worker pool size
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g. "5m" - lease duration before a job is redelivered
	MaxReceive        int    `toml:"max_receive"`        // max delivery attempts before a job is dead-lettered
	QueueName         string `toml:"queue_name"`         // key prefix in Badger
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // delete database on startup for clean test runs
}

// FetchConfig configures the fetcher strategy chain shared across all of
// PlainHttp/Headless/StealthProxy/FireEngine.
type FetchConfig struct {
	UserAgent           string        `toml:"user_agent"`
	RequestTimeout      time.Duration `toml:"request_timeout"`
	MaxBodySize         int64         `toml:"max_body_size"` // bytes
	HeadlessPoolSize    int           `toml:"headless_pool_size"`
	StealthProxyServer  string        `toml:"stealth_proxy_server"` // optional proxy URL for the stealth variant
	FireEngineEndpoint  string        `toml:"fire_engine_endpoint"` // external render-service URL
	RetryMaxAttempts    int           `toml:"retry_max_attempts"`
	RetryInitialBackoff time.Duration `toml:"retry_initial_backoff"`
	RetryMaxBackoff     time.Duration `toml:"retry_max_backoff"`
}

// CrawlConfig configures default crawl-wide behavior: frontier limits and
// the robots.txt cache eviction schedule.
type CrawlConfig struct {
	DefaultMaxDepth       int    `toml:"default_max_depth"`
	DefaultMaxPages       int    `toml:"default_max_pages"`
	AllowBackwardLinks    bool   `toml:"allow_backward_links"`
	AllowExternalLinks    bool   `toml:"allow_external_links"`
	FollowRobotsTxt       bool   `toml:"follow_robots_txt"`
	RobotsCacheTTL        string `toml:"robots_cache_ttl"`        // e.g. "1h"
	CacheEvictionSchedule string `toml:"cache_eviction_schedule"` // cron expression for robots.txt cache eviction
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // time format for logs (default "15:04:05.000")
}

// WorkersConfig controls worker pool admission limits.
type WorkersConfig struct {
	GlobalConcurrency int `toml:"global_concurrency"` // hard cap across all crawls
	PerCrawlMax       int `toml:"per_crawl_max"`       // hard cap per individual crawl
	PerHostMax        int `toml:"per_host_max"`        // hard cap per URL hostname
}

// ExtractConfig configures the opaque LLM-backed structured extraction step.
type ExtractConfig struct {
	APIKey    string  `toml:"api_key"`
	Model     string  `toml:"model"`
	MaxTokens int     `toml:"max_tokens"`
	Timeout   string  `toml:"timeout"`
	RateLimit string  `toml:"rate_limit"`
}

// WebSocketConfig contains configuration for WebSocket progress streaming.
type WebSocketConfig struct {
	MinLevel string `toml:"min_level"` // not read: the websocket stream carries per-job progress events only, no log lines
}

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Queue: QueueConfig{
			PollInterval:      "1s",
			Concurrency:       20,
			VisibilityTimeout: "5m",
			MaxReceive:        3,
			QueueName:         "crawlkit_jobs",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Fetch: FetchConfig{
			UserAgent:           "Mozilla/5.0 (compatible; crawlkit/1.0; +https://github.com/ternarybob/crawlkit)",
			RequestTimeout:      30 * time.Second,
			MaxBodySize:         10 * 1024 * 1024, // 10MB
			HeadlessPoolSize:    2,
			RetryMaxAttempts:    3,
			RetryInitialBackoff: time.Second,
			RetryMaxBackoff:     30 * time.Second,
		},
		Crawl: CrawlConfig{
			DefaultMaxDepth:       5,
			DefaultMaxPages:       100,
			AllowBackwardLinks:    false,
			AllowExternalLinks:    false,
			FollowRobotsTxt:       true,
			RobotsCacheTTL:        "1h",
			CacheEvictionSchedule: "0 0 * * * *", // hourly
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Workers: WorkersConfig{
			GlobalConcurrency: 20,
			PerCrawlMax:       5,
			PerHostMax:        2,
		},
		Extract: ExtractConfig{
			Model:     "claude-haiku-3-5-20241022",
			MaxTokens: 4096,
			Timeout:   "2m",
			RateLimit: "1s",
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files, later files
// overriding earlier ones, then applies environment variable overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CRAWLKIT_ENV"); env != "" {
		config.Environment = env
	}
	if port := os.Getenv("CRAWLKIT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CRAWLKIT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if path := os.Getenv("CRAWLKIT_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if level := os.Getenv("CRAWLKIT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("CRAWLKIT_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if ua := os.Getenv("CRAWLKIT_FETCH_USER_AGENT"); ua != "" {
		config.Fetch.UserAgent = ua
	}
	if endpoint := os.Getenv("CRAWLKIT_FIRE_ENGINE_ENDPOINT"); endpoint != "" {
		config.Fetch.FireEngineEndpoint = endpoint
	}
	if proxy := os.Getenv("CRAWLKIT_STEALTH_PROXY_SERVER"); proxy != "" {
		config.Fetch.StealthProxyServer = proxy
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Extract.APIKey = apiKey
	}
	if apiKey := os.Getenv("CRAWLKIT_EXTRACT_API_KEY"); apiKey != "" {
		config.Extract.APIKey = apiKey
	}
	if concurrency := os.Getenv("CRAWLKIT_WORKERS_GLOBAL_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Workers.GlobalConcurrency = c
		}
	}
}

// IsProduction returns true if the environment is set to production.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// AllowTestURLs returns true if test URLs (localhost, 127.0.0.1, etc.) are
// allowed. Test URLs are only allowed in development mode.
func (c *Config) AllowTestURLs() bool {
	return !c.IsProduction()
}
