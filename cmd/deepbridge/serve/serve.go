// Package servecmder provides the serve command that runs the proxy server.
package servecmder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/deepbridge/pkg/config"
	"github.com/papercomputeco/deepbridge/pkg/dialect"
	"github.com/papercomputeco/deepbridge/pkg/eventstream"
	"github.com/papercomputeco/deepbridge/pkg/eventstream/kafka"
	"github.com/papercomputeco/deepbridge/pkg/eventstream/nop"
	"github.com/papercomputeco/deepbridge/pkg/logger"
	"github.com/papercomputeco/deepbridge/proxy"
)

type serveCommander struct {
	flags serveFlags
	debug bool

	cfg    *config.Config
	logger *slog.Logger
}

// serveFlags are flag targets only. Effective values are read back through
// viper so env and config.toml apply when a flag is not set.
type serveFlags struct {
	listen              string
	upstream            string
	upstreamKey         string
	upstreamTimeout     string
	authKey             string
	defaultModel        string
	eventStreamProvider string
	eventStreamBrokers  string
	eventStreamTopic    string
	metrics             bool
	logJSON             bool
	logFile             string
}

var serveStringFlags = []string{
	config.FlagListen,
	config.FlagUpstream,
	config.FlagUpstreamKey,
	config.FlagUpstreamTimeout,
	config.FlagAuthKey,
	config.FlagDefaultModel,
	config.FlagEventStreamProvider,
	config.FlagEventStreamBrokers,
	config.FlagEventStreamTopic,
	config.FlagLogFile,
}

var serveBoolFlags = []string{
	config.FlagMetrics,
	config.FlagLogJSON,
}

const serveLongDesc string = `Run the deepbridge proxy server.

The proxy accepts OpenAI chat completion requests, forwards them to DeepInfra
and translates the answers back, including streamed responses.

Configuration precedence, highest first:
  flags, DEEPBRIDGE_* environment variables, .deepbridge/config.toml, defaults

The caller bearer token can also be set with the AUTHKEY environment variable.`

const serveShortDesc string = "Run the deepbridge proxy server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfg, err := resolveConfig(cmd, configDir)
			if err != nil {
				return err
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	f := &cmder.flags
	stringTargets := map[string]*string{
		config.FlagListen:              &f.listen,
		config.FlagUpstream:            &f.upstream,
		config.FlagUpstreamKey:         &f.upstreamKey,
		config.FlagUpstreamTimeout:     &f.upstreamTimeout,
		config.FlagAuthKey:             &f.authKey,
		config.FlagDefaultModel:        &f.defaultModel,
		config.FlagEventStreamProvider: &f.eventStreamProvider,
		config.FlagEventStreamBrokers:  &f.eventStreamBrokers,
		config.FlagEventStreamTopic:    &f.eventStreamTopic,
		config.FlagLogFile:             &f.logFile,
	}
	for _, key := range serveStringFlags {
		config.AddStringFlag(cmd, config.ServeFlags, key, stringTargets[key])
	}
	config.AddBoolFlag(cmd, config.ServeFlags, config.FlagMetrics, &f.metrics)
	config.AddBoolFlag(cmd, config.ServeFlags, config.FlagLogJSON, &f.logJSON)

	return cmd
}

// resolveConfig layers flags over env, config.toml and defaults, then
// validates the result.
func resolveConfig(cmd *cobra.Command, configDir string) (*config.Config, error) {
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.ServeFlags, serveStringFlags)
	config.BindRegisteredFlags(v, cmd, config.ServeFlags, serveBoolFlags)

	cfg := config.FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *serveCommander) run() error {
	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}

	p, err := proxy.New(c.proxyConfig(), publisher, c.logger)
	if err != nil {
		_ = publisher.Close()
		return fmt.Errorf("creating proxy: %w", err)
	}

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return errors.Join(err, p.Close())
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return p.Close()
	}
}

// proxyConfig builds the immutable proxy configuration. Model descriptors
// share one created timestamp taken here.
func (c *serveCommander) proxyConfig() proxy.Config {
	cfg := c.cfg
	return proxy.Config{
		ListenAddr:      cfg.Proxy.Listen,
		UpstreamURL:     cfg.Proxy.Upstream,
		UpstreamKey:     cfg.Proxy.UpstreamKey,
		UpstreamTimeout: cfg.UpstreamTimeoutDuration(),
		Source:          cfg.Proxy.Source,
		Referer:         cfg.Proxy.Referer,
		AuthKey:         cfg.Auth.Key,
		DefaultModel:    cfg.Models.Default,
		Models:          dialect.NewModelList(cfg.Models.Allowed, cfg.Models.OwnedBy, time.Now().Unix()),
		MetricsEnabled:  cfg.Metrics.Enabled,
	}
}

// setupLogger builds the console logger and, when log.file is set, tees
// JSON logs into that file. The returned func closes the file.
func (c *serveCommander) setupLogger() (func(), error) {
	pretty := c.cfg.Log.Pretty || (!c.cfg.Log.JSON && logger.IsTerminal(os.Stdout))
	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(c.cfg.Log.JSON),
		logger.WithPretty(pretty),
	)

	if c.cfg.Log.File == "" {
		c.logger = console
		return func() {}, nil
	}

	f, err := os.OpenFile(c.cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	c.logger = logger.Multi(console, logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	))
	return func() { _ = f.Close() }, nil
}

func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	es := c.cfg.EventStream
	switch es.Provider {
	case config.EventStreamKafka:
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers: es.Brokers,
			Topic:   es.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		c.logger.Info("publishing completion events to kafka",
			"brokers", es.Brokers,
			"topic", es.Topic,
		)
		return pub, nil
	default:
		return nop.NewPublisher(), nil
	}
}
