// Package modelscmder provides the models command that prints the model
// allow-list.
package modelscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/deepbridge/pkg/cliui"
	"github.com/papercomputeco/deepbridge/pkg/config"
)

const modelsLongDesc string = `List the models the proxy accepts.

The allow-list comes from models.allowed in config.toml, the
DEEPBRIDGE_MODELS_ALLOWED environment variable, or the built-in defaults.
Requests for any other model are rejected without calling DeepInfra.`

const modelsShortDesc string = "List the models the proxy accepts"

func NewModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: modelsShortDesc,
		Long:  modelsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runModels(cmd, configDir)
		},
	}

	return cmd
}

func runModels(cmd *cobra.Command, configDir string) error {
	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := config.FromViper(v)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Models"))

	for _, id := range cfg.Models.Allowed {
		marker := " "
		if id == cfg.Models.Default {
			marker = cliui.SuccessMark
		}
		fmt.Fprintf(out, "  %s %s %s\n", marker, cliui.ValueStyle.Render(id), cliui.DimStyle.Render(cfg.Models.OwnedBy))
	}

	fmt.Fprintf(out, "\n  %s %s\n\n", cliui.DimStyle.Render("default:"), cliui.KeyStyle.Render(cfg.Models.Default))
	return nil
}
