// Package deepbridgecmder
package deepbridgecmder

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/deepbridge/cmd/deepbridge/config"
	modelscmder "github.com/papercomputeco/deepbridge/cmd/deepbridge/models"
	servecmder "github.com/papercomputeco/deepbridge/cmd/deepbridge/serve"
	versioncmder "github.com/papercomputeco/deepbridge/cmd/version"
)

const deepbridgeLongDesc string = `Deepbridge is an OpenAI-compatible proxy for DeepInfra.

OpenAI chat completion requests are translated for DeepInfra and the
answers, streamed or not, are translated back.

Run the proxy using:
  deepbridge serve     Run the proxy server
  deepbridge models    List the models the proxy accepts
  deepbridge config    Manage persistent configuration`

const deepbridgeShortDesc string = "Deepbridge - OpenAI to DeepInfra proxy"

func NewDeepbridgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "deepbridge",
		Short:        deepbridgeShortDesc,
		Long:         deepbridgeLongDesc,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// A .env in the working directory is optional.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading .env: %w", err)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .deepbridge/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(modelscmder.NewModelsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
