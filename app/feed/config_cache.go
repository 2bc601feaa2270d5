package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSocialQuery  = "technology OR news"
	DefaultSocialLimit  = 25
	DefaultRSSLimit     = 20
	DefaultSocialAPIURL = "https://public.api.bsky.app"
)

// DefaultFeeds are used when no RSS endpoint is configured.
var DefaultFeeds = []string{
	"https://feeds.arstechnica.com/arstechnica/index",
	"https://www.theverge.com/rss/index.xml",
	"https://techcrunch.com/feed/",
}

// DefaultEndpoints returns the built-in endpoint set.
func DefaultEndpoints(socialAPIURL string) []Endpoint {
	endpoints := make([]Endpoint, 0, len(DefaultFeeds)+1)
	for _, u := range DefaultFeeds {
		endpoints = append(endpoints, Endpoint{Name: HostName(u), URL: u, Kind: SourceRSS})
	}
	endpoints = append(endpoints, Endpoint{
		Name:  "bluesky",
		URL:   socialAPIURL,
		Kind:  SourceSocial,
		Query: DefaultSocialQuery,
		Limit: DefaultSocialLimit,
	})
	return endpoints
}

// Config is one endpoint definition, stored as FEEDS_DIR/<name>.yml.
type Config struct {
	Name    string     `yaml:"-"`
	URL     string     `yaml:"url"`
	Kind    SourceKind `yaml:"kind"`
	Query   string     `yaml:"query"`
	Limit   int        `yaml:"limit"`
	Enabled *bool      `yaml:"enabled"`
}

// IsEnabled defaults to true when the field is not set.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c *Config) Endpoint() Endpoint {
	return Endpoint{Name: c.Name, URL: c.URL, Kind: c.Kind, Query: c.Query, Limit: c.Limit}
}

type ConfigCache struct {
	feedsDir string
	defaults []Endpoint
	cache    map[string]*Config
	mu       sync.RWMutex
}

func NewConfigCache(feedsDir string, defaults []Endpoint) *ConfigCache {
	return &ConfigCache{
		feedsDir: feedsDir,
		defaults: defaults,
		cache:    make(map[string]*Config),
	}
}

// Run (re)loads every FEEDS_DIR/*.yml file and replaces the cached set in
// one step. On error the previous set stays in place.
func (cc *ConfigCache) Run() error {
	configs := make(map[string]*Config)

	if _, err := os.Stat(cc.feedsDir); os.IsNotExist(err) {
		cc.replace(configs)
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.feedsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.readConfig(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}
		configs[name] = config

		slog.Debug("Configuration loaded", "endpoint", name, "kind", config.Kind, "enabled", config.IsEnabled())
	}

	cc.replace(configs)
	return nil
}

func (cc *ConfigCache) replace(configs map[string]*Config) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache = configs
}

// GetEndpoint looks up an enabled endpoint, built-in defaults included, by name.
func (cc *ConfigCache) GetEndpoint(name string) (Endpoint, bool) {
	for _, e := range cc.AllEndpoints() {
		if e.Name == name {
			return e, true
		}
	}
	return Endpoint{}, false
}

func (cc *ConfigCache) readConfig(name string) (*Config, error) {
	configFile := filepath.Join(cc.feedsDir, name+".yml")
	config, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	config.Name = name

	if err := cc.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	return config, nil
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

// Endpoints returns the enabled endpoints of kind ordered by name. The
// built-in defaults of that kind apply when none are configured.
func (cc *ConfigCache) Endpoints(kind SourceKind) []Endpoint {
	cc.mu.RLock()
	var endpoints []Endpoint
	for _, config := range cc.cache {
		if config.Kind == kind && config.IsEnabled() {
			endpoints = append(endpoints, config.Endpoint())
		}
	}
	cc.mu.RUnlock()

	if len(endpoints) == 0 {
		for _, e := range cc.defaults {
			if e.Kind == kind {
				endpoints = append(endpoints, e)
			}
		}
		return endpoints
	}

	slices.SortFunc(endpoints, func(a, b Endpoint) int {
		return strings.Compare(a.Name, b.Name)
	})
	return endpoints
}

// IsConfigured reports whether e is one of the endpoints AllEndpoints
// returns, query and limit included.
func (cc *ConfigCache) IsConfigured(e Endpoint) bool {
	key := e.CacheKey()
	for _, configured := range cc.AllEndpoints() {
		if configured.CacheKey() == key {
			return true
		}
	}
	return false
}

// AllEndpoints returns the enabled endpoints of every kind.
func (cc *ConfigCache) AllEndpoints() []Endpoint {
	return append(cc.Endpoints(SourceRSS), cc.Endpoints(SourceSocial)...)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Kind == SourceSocial {
		if config.Query == "" {
			config.Query = DefaultSocialQuery
		}
		if config.Limit == 0 {
			config.Limit = DefaultSocialLimit
		}
	}

	return &config, nil
}

func (cc *ConfigCache) validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if config.URL == "" {
		return fmt.Errorf("endpoint URL is required")
	}

	u, err := url.Parse(config.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint URL must be an absolute http(s) URL: %s", config.URL)
	}

	if _, err := ParseSourceKind(string(config.Kind)); err != nil {
		return err
	}

	if config.Limit < 0 {
		return fmt.Errorf("limit must be non-negative")
	}

	return nil
}
