package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Validate checks a fully resolved Config before the server starts.
func (c *Config) Validate() error {
	var errs []error

	if c.Proxy.Listen == "" {
		errs = append(errs, errors.New("proxy.listen is required"))
	}

	if u, err := url.Parse(c.Proxy.Upstream); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("proxy.upstream must be an absolute URL, got %q", c.Proxy.Upstream))
	}

	if d, err := time.ParseDuration(c.Proxy.UpstreamTimeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("proxy.upstream_timeout must be a positive duration, got %q", c.Proxy.UpstreamTimeout))
	}

	if c.Auth.Key == "" {
		errs = append(errs, errors.New("auth.key is required"))
	}

	if len(c.Models.Allowed) == 0 {
		errs = append(errs, errors.New("models.allowed must list at least one model"))
	} else if !slices.Contains(c.Models.Allowed, c.Models.Default) {
		errs = append(errs, fmt.Errorf("models.default %q is not in models.allowed", c.Models.Default))
	}

	switch c.EventStream.Provider {
	case EventStreamNop:
	case EventStreamKafka:
		if len(c.EventStream.Brokers) == 0 {
			errs = append(errs, errors.New("eventstream.brokers is required for the kafka provider"))
		}
		if c.EventStream.Topic == "" {
			errs = append(errs, errors.New("eventstream.topic is required for the kafka provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown eventstream.provider %q (available: %s)",
			c.EventStream.Provider, strings.Join(eventStreamProviders, ", ")))
	}

	return errors.Join(errs...)
}

// UpstreamTimeoutDuration returns the parsed upstream timeout. It is only
// meaningful after Validate succeeded.
func (c *Config) UpstreamTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Proxy.UpstreamTimeout)
	return d
}
