package cmd

import (
	"fmt"
	"slices"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show a runtime's environment variables",
	Args:  cobra.NoArgs,
	RunE:  runEnv,
}

var (
	envSel  selectorFlags
	envJSON bool
)

func init() {
	envSel.register(envCmd)
	envCmd.Flags().BoolVar(&envJSON, "json", false, "Print the environment as a JSON object")
	rootCmd.AddCommand(envCmd)
}

func runEnv(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	meta, err := resolveRuntime(ctx, &envSel)
	if err != nil {
		return err
	}

	env, err := client().Env(ctx, meta.PID)
	if err != nil {
		return err
	}

	if envJSON {
		return printJSON(out, env)
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s=%s\n", k, shellquote.Join(env[k]))
	}
	return nil
}
