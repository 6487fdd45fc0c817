package cmd

import (
	"github.com/spf13/cobra"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Show a runtime's metadata",
	Args:  cobra.NoArgs,
	RunE:  runMetadata,
}

var metadataSel selectorFlags

func init() {
	metadataSel.register(metadataCmd)
	rootCmd.AddCommand(metadataCmd)
}

func runMetadata(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Resolution fetches metadata fresh from every candidate.
	meta, err := resolveRuntime(ctx, &metadataSel)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), meta)
}
