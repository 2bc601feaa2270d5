package cfg

import "time"

type Cfg struct {
	// Application configuration
	Port              string
	FeedsDir          string
	DBPath            string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval time.Duration

	// Upstream fetching
	UserAgent        string
	FetchTimeout     time.Duration
	HostRateInterval time.Duration
	SocialAPIURL     string

	// Cache configuration
	CacheBackend   string
	CacheSize      int
	RedisAddr      string
	RSSCacheTTL    time.Duration
	SocialCacheTTL time.Duration

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

// MaxCacheTTL is the longest TTL any cache entry can have.
func (c *Cfg) MaxCacheTTL() time.Duration {
	return max(c.RSSCacheTTL, c.SocialCacheTTL)
}
