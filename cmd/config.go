package cmd

import (
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show a runtime's configuration",
	Long: `Show the configuration a runtime was started with.

With --service, show the resolved configuration of one hosted service.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var (
	configSel     selectorFlags
	configService string
)

func init() {
	configSel.register(configCmd)
	configCmd.Flags().StringVarP(&configService, "service", "s", "", "Show the configuration of this service")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	meta, err := resolveRuntime(ctx, &configSel)
	if err != nil {
		return err
	}

	var cfg map[string]any
	if configService != "" {
		cfg, err = client().ServiceConfig(ctx, meta.PID, configService)
	} else {
		cfg, err = client().Config(ctx, meta.PID)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), cfg)
}
