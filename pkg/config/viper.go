package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/deepbridge/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable read by InitViper.
const EnvPrefix = "DEEPBRIDGE"

// legacyAuthKeyEnv is honored as a fallback for auth.key.
const legacyAuthKeyEnv = "AUTHKEY"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the DEEPBRIDGE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (DEEPBRIDGE_PROXY_LISTEN, DEEPBRIDGE_AUTH_KEY, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit names are not prefixed; the first one set wins.
	if err := v.BindEnv("auth.key", EnvPrefix+"_AUTH_KEY", legacyAuthKeyEnv); err != nil {
		return nil, fmt.Errorf("binding auth key env: %w", err)
	}

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Proxy
	v.SetDefault("proxy.listen", d.Proxy.Listen)
	v.SetDefault("proxy.upstream", d.Proxy.Upstream)
	v.SetDefault("proxy.upstream_key", d.Proxy.UpstreamKey)
	v.SetDefault("proxy.upstream_timeout", d.Proxy.UpstreamTimeout)
	v.SetDefault("proxy.source", d.Proxy.Source)
	v.SetDefault("proxy.referer", d.Proxy.Referer)

	// Auth
	v.SetDefault("auth.key", d.Auth.Key)

	// Models
	v.SetDefault("models.default", d.Models.Default)
	v.SetDefault("models.allowed", d.Models.Allowed)
	v.SetDefault("models.owned_by", d.Models.OwnedBy)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)

	// Metrics and logging
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.pretty", d.Log.Pretty)
	v.SetDefault("log.file", d.Log.File)
}

// FromViper resolves the effective Config from every layer bound to v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Proxy: ProxyConfig{
			Listen:          v.GetString("proxy.listen"),
			Upstream:        strings.TrimRight(v.GetString("proxy.upstream"), "/"),
			UpstreamKey:     v.GetString("proxy.upstream_key"),
			UpstreamTimeout: v.GetString("proxy.upstream_timeout"),
			Source:          v.GetString("proxy.source"),
			Referer:         v.GetString("proxy.referer"),
		},
		Auth: AuthConfig{
			Key: v.GetString("auth.key"),
		},
		Models: ModelsConfig{
			Default: v.GetString("models.default"),
			Allowed: stringList(v, "models.allowed"),
			OwnedBy: v.GetString("models.owned_by"),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Brokers:  stringList(v, "eventstream.brokers"),
			Topic:    v.GetString("eventstream.topic"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
		},
		Log: LogConfig{
			JSON:   v.GetBool("log.json"),
			Pretty: v.GetBool("log.pretty"),
			File:   v.GetString("log.file"),
		},
	}
}

// stringList reads a list key. Values arriving from the environment or a
// flag as a single comma separated string are split.
func stringList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		out = append(out, SplitList(item)...)
	}
	return out
}
