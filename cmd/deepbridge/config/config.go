// Package configcmder provides the config command for managing persistent
// deepbridge configuration stored in the .deepbridge/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent deepbridge configuration.

Configuration is stored as config.toml in the .deepbridge/ directory and
provides default values for "deepbridge serve". CLI flags and DEEPBRIDGE_*
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  proxy.listen, proxy.upstream, proxy.upstream_key, proxy.upstream_timeout,
  proxy.source, proxy.referer,
  auth.key,
  models.default, models.allowed, models.owned_by,
  eventstream.provider, eventstream.brokers, eventstream.topic,
  metrics.enabled, log.json, log.pretty, log.file

Use subcommands to get, set, or list configuration values:
  deepbridge config set <key> <value>    Set a configuration value
  deepbridge config get <key>            Get a configuration value
  deepbridge config list                 List all configuration values

Examples:
  deepbridge config set auth.key sk-mysecret
  deepbridge config set models.allowed google/gemma-3-4b-it,microsoft/phi-4
  deepbridge config get proxy.upstream
  deepbridge config list`

const configShortDesc string = "Manage persistent deepbridge configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
