package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent deepbridge configuration stored as
// config.toml in the .deepbridge/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Proxy       ProxyConfig       `toml:"proxy"`
	Auth        AuthConfig        `toml:"auth"`
	Models      ModelsConfig      `toml:"models"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Log         LogConfig         `toml:"log"`
}

// ProxyConfig holds the listener and upstream settings.
type ProxyConfig struct {
	Listen   string `toml:"listen,omitempty"`
	Upstream string `toml:"upstream,omitempty"`

	// UpstreamKey is sent as a bearer token to the upstream when set.
	UpstreamKey string `toml:"upstream_key,omitempty"`

	// UpstreamTimeout is the upstream idle timeout, e.g. "5m".
	UpstreamTimeout string `toml:"upstream_timeout,omitempty"`

	// Source and Referer are the fixed origin markers sent upstream.
	Source  string `toml:"source,omitempty"`
	Referer string `toml:"referer,omitempty"`
}

// AuthConfig holds the caller-facing bearer secret.
type AuthConfig struct {
	Key string `toml:"key,omitempty"`
}

// ModelsConfig holds the static model allow-list.
type ModelsConfig struct {
	Default string   `toml:"default,omitempty"`
	Allowed []string `toml:"allowed,omitempty"`
	OwnedBy string   `toml:"owned_by,omitempty"`
}

// EventStreamConfig selects where completion events are published.
type EventStreamConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

type LogConfig struct {
	JSON   bool `toml:"json,omitempty"`
	Pretty bool `toml:"pretty,omitempty"`

	// File additionally writes JSON logs to the given path.
	File string `toml:"file,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"proxy.listen": {
		get: func(c *Config) string { return c.Proxy.Listen },
		set: func(c *Config, v string) error { c.Proxy.Listen = v; return nil },
	},
	"proxy.upstream": {
		get: func(c *Config) string { return c.Proxy.Upstream },
		set: func(c *Config, v string) error { c.Proxy.Upstream = v; return nil },
	},
	"proxy.upstream_key": {
		get: func(c *Config) string { return c.Proxy.UpstreamKey },
		set: func(c *Config, v string) error { c.Proxy.UpstreamKey = v; return nil },
	},
	"proxy.upstream_timeout": {
		get: func(c *Config) string { return c.Proxy.UpstreamTimeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for proxy.upstream_timeout: %w", err)
			}
			c.Proxy.UpstreamTimeout = v
			return nil
		},
	},
	"proxy.source": {
		get: func(c *Config) string { return c.Proxy.Source },
		set: func(c *Config, v string) error { c.Proxy.Source = v; return nil },
	},
	"proxy.referer": {
		get: func(c *Config) string { return c.Proxy.Referer },
		set: func(c *Config, v string) error { c.Proxy.Referer = v; return nil },
	},
	"auth.key": {
		get: func(c *Config) string { return c.Auth.Key },
		set: func(c *Config, v string) error { c.Auth.Key = v; return nil },
	},
	"models.default": {
		get: func(c *Config) string { return c.Models.Default },
		set: func(c *Config, v string) error { c.Models.Default = v; return nil },
	},
	"models.allowed": {
		get: func(c *Config) string { return strings.Join(c.Models.Allowed, ",") },
		set: func(c *Config, v string) error { c.Models.Allowed = SplitList(v); return nil },
	},
	"models.owned_by": {
		get: func(c *Config) string { return c.Models.OwnedBy },
		set: func(c *Config, v string) error { c.Models.OwnedBy = v; return nil },
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			if !isEventStreamProvider(v) {
				return fmt.Errorf("invalid value for eventstream.provider: %q (available: %s)", v, strings.Join(eventStreamProviders, ", "))
			}
			c.EventStream.Provider = v
			return nil
		},
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error { c.EventStream.Brokers = SplitList(v); return nil },
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
	"metrics.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Metrics.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for metrics.enabled: %w", err)
			}
			c.Metrics.Enabled = b
			return nil
		},
	},
	"log.json": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.JSON) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for log.json: %w", err)
			}
			c.Log.JSON = b
			return nil
		},
	},
	"log.pretty": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.Pretty) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for log.pretty: %w", err)
			}
			c.Log.Pretty = b
			return nil
		},
	},
	"log.file": {
		get: func(c *Config) string { return c.Log.File },
		set: func(c *Config, v string) error { c.Log.File = v; return nil },
	},
}

// SplitList splits a comma separated value into trimmed, non-empty items.
func SplitList(v string) []string {
	var out []string
	for item := range strings.SplitSeq(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
