package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Application configuration
	Port              string        `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	FeedsDir          string        `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing endpoint configuration files"`
	DBPath            string        `long:"db-path" env:"DB_PATH" default:"./data/stream-comb.db" description:"SQLite database file for fetch status"`
	BaseUrl           string        `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://stream.example.com)"`
	WorkerCount       int           `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Background workers and maximum concurrent fetches per request (0 = unbounded fan-out)"`
	SchedulerInterval time.Duration `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60s" description:"Interval between background refreshes"`

	// Upstream fetching
	UserAgent        string        `long:"user-agent" env:"USER_AGENT" default:"Stream Comb/1.0" description:"User agent string for HTTP requests"`
	FetchTimeout     time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30s" description:"HTTP client timeout for upstream requests"`
	HostRateInterval time.Duration `long:"host-rate-interval" env:"HOST_RATE_INTERVAL" default:"0s" description:"Minimum spacing between requests to one host (0 = disabled)"`
	SocialAPIURL     string        `long:"social-api-url" env:"SOCIAL_API_URL" default:"https://public.api.bsky.app" description:"Base URL of the social search API"`

	// Cache configuration
	CacheBackend   string        `long:"cache-backend" env:"CACHE_BACKEND" default:"memory" choice:"memory" choice:"redis" description:"Cache backend"`
	CacheSize      int           `long:"cache-size" env:"CACHE_SIZE" default:"512" description:"Maximum number of in-memory cache entries"`
	RedisAddr      string        `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address when the redis backend is used"`
	RSSCacheTTL    time.Duration `long:"rss-cache-ttl" env:"RSS_CACHE_TTL" default:"60s" description:"Cache TTL for RSS/Atom endpoints"`
	SocialCacheTTL time.Duration `long:"social-cache-ttl" env:"SOCIAL_CACHE_TTL" default:"30s" description:"Cache TTL for social search results"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for log timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses args instead of os.Args. Environment variables still apply.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Port:              raw.Port,
		FeedsDir:          raw.FeedsDir,
		DBPath:            raw.DBPath,
		BaseUrl:           raw.BaseUrl,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		UserAgent:         raw.UserAgent,
		FetchTimeout:      raw.FetchTimeout,
		HostRateInterval:  raw.HostRateInterval,
		SocialAPIURL:      raw.SocialAPIURL,
		CacheBackend:      raw.CacheBackend,
		CacheSize:         raw.CacheSize,
		RedisAddr:         raw.RedisAddr,
		RSSCacheTTL:       raw.RSSCacheTTL,
		SocialCacheTTL:    raw.SocialCacheTTL,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	return cfg, nil
}

func validate(cfg *Cfg) error {
	if cfg.WorkerCount < 0 {
		return fmt.Errorf("worker count must be non-negative")
	}
	if cfg.SchedulerInterval <= 0 {
		return fmt.Errorf("scheduler interval must be positive")
	}
	if cfg.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if cfg.RSSCacheTTL <= 0 || cfg.SocialCacheTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
	}
	return nil
}
