package config

import (
	"fmt"
	"time"

	"fc-troll-detector/internal/score"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig selects the durable profile cache.
type CacheConfig struct {
	Backend string `mapstructure:"backend"` // sqlite, redis or none
	Path    string `mapstructure:"path"`    // sqlite database file
	Prefix  string `mapstructure:"prefix"`
	TTL     string `mapstructure:"ttl"` // duration string, e.g., "24h"
}

// ModeConfig tunes one page mode.
type ModeConfig struct {
	Concurrency  int    `mapstructure:"concurrency"`
	MaxItems     int    `mapstructure:"max_items"`
	RequestDelay string `mapstructure:"request_delay"` // e.g., "50ms"
}

// ForumConfig describes how the forum is reached.
type ForumConfig struct {
	BaseURL   string     `mapstructure:"base_url"`
	UserAgent string     `mapstructure:"user_agent"`
	Timeout   string     `mapstructure:"timeout"`
	Thread    ModeConfig `mapstructure:"thread"`
	Listing   ModeConfig `mapstructure:"listing"`
}

// ServerConfig controls the HTTP service.
type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	SessionTTL string `mapstructure:"session_ttl"`
}

// Config is the top-level configuration structure.
type Config struct {
	App      AppConfig    `mapstructure:"app"`
	Redis    RedisConfig  `mapstructure:"redis"`
	Cache    CacheConfig  `mapstructure:"cache"`
	Forum    ForumConfig  `mapstructure:"forum"`
	Server   ServerConfig `mapstructure:"server"`
	Settings Settings     `mapstructure:"settings"`
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "sqlite"
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "./data/profile_cache.db"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "fc_troll_cache_"
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "24h"
	}
	if c.Forum.BaseURL == "" {
		c.Forum.BaseURL = "https://forocoches.com/foro"
	}
	if c.Forum.Timeout == "" {
		c.Forum.Timeout = "15s"
	}
	c.Forum.Thread.fillDefaults(4, 50)
	c.Forum.Listing.fillDefaults(6, 40)
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.SessionTTL == "" {
		c.Server.SessionTTL = "30m"
	}
	c.Settings.FillDefaults()
}

func (m *ModeConfig) fillDefaults(concurrency, maxItems int) {
	if m.Concurrency <= 0 {
		m.Concurrency = concurrency
	}
	if m.MaxItems <= 0 {
		m.MaxItems = maxItems
	}
	if m.RequestDelay == "" {
		m.RequestDelay = "50ms"
	}
}

// Delay is the pause before each unit's network work.
func (m ModeConfig) Delay() time.Duration { return durationOr(m.RequestDelay, 50*time.Millisecond) }

// CacheTTL is the parsed cache.ttl.
func (c Config) CacheTTL() time.Duration { return durationOr(c.Cache.TTL, 24*time.Hour) }

// ForumTimeout is the parsed forum.timeout.
func (c Config) ForumTimeout() time.Duration { return durationOr(c.Forum.Timeout, 15*time.Second) }

// SessionTTL is the parsed server.session_ttl.
func (c Config) SessionTTL() time.Duration { return durationOr(c.Server.SessionTTL, 30*time.Minute) }

// ScoreParams converts the settings into calculator parameters.
func (c Config) ScoreParams() score.Params { return c.Settings.ScoreParams() }

func durationOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// Validate reports malformed duration strings.
func (c Config) Validate() error {
	for name, s := range map[string]string{
		"cache.ttl":                   c.Cache.TTL,
		"forum.timeout":               c.Forum.Timeout,
		"forum.thread.request_delay":  c.Forum.Thread.RequestDelay,
		"forum.listing.request_delay": c.Forum.Listing.RequestDelay,
		"server.session_ttl":          c.Server.SessionTTL,
	} {
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}
