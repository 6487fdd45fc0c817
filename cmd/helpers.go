package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/rtctl/internal/app"
	"github.com/firefly-engineering/rtctl/internal/config"
	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/discovery"
	"github.com/firefly-engineering/rtctl/internal/errors"
	"github.com/firefly-engineering/rtctl/internal/health"
	"github.com/firefly-engineering/rtctl/internal/logging"
	"github.com/firefly-engineering/rtctl/internal/tui"
)

// paths returns the default paths configuration.
func paths() *config.Paths {
	return app.Default.Paths
}

// client returns the shared control client.
func client() *control.Client {
	return app.Default.Client
}

// selectorFlags holds the --pid/--name pair shared by runtime commands.
type selectorFlags struct {
	pid  int
	name string
}

func (f *selectorFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.pid, "pid", "p", 0, "Runtime process id")
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Runtime package name")
}

func (f *selectorFlags) reset() {
	f.pid = 0
	f.name = ""
}

func (f *selectorFlags) selector() discovery.Selector {
	return discovery.ParseSelector(f.pid, f.name)
}

// interactive reports whether a picker can be shown.
var interactive = func() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

// resolveRuntime finds the runtime a command targets. An unqualified
// selector is ambiguous when several runtimes answer; the picker settles it
// on a terminal, otherwise the first runtime by pid is used.
func resolveRuntime(ctx context.Context, f *selectorFlags) (control.RuntimeMetadata, error) {
	sel := f.selector()
	if _, ok := sel.(discovery.Any); !ok || !interactive() {
		return app.Default.Resolve(ctx, sel)
	}

	runtimes, err := app.Default.Discovery.ListRuntimes(ctx)
	if err != nil {
		return control.RuntimeMetadata{}, err
	}
	switch len(runtimes) {
	case 0:
		return control.RuntimeMetadata{}, errors.RuntimeNotFound(sel.String())
	case 1:
		return runtimes[0], nil
	}

	logging.Debug("ambiguous selector, opening picker", "runtimes", len(runtimes))
	result, err := tui.RunPicker(pickerEntries(ctx, runtimes))
	if err != nil {
		return control.RuntimeMetadata{}, fmt.Errorf("picker error: %w", err)
	}
	if result.Action != tui.ActionSelect || result.Runtime == nil {
		return control.RuntimeMetadata{}, errors.RuntimeNotFound(sel.String())
	}
	return *result.Runtime, nil
}

func pickerEntries(ctx context.Context, runtimes []control.RuntimeMetadata) []tui.Entry {
	entries := make([]tui.Entry, 0, len(runtimes))
	for _, rt := range runtimes {
		entries = append(entries, tui.Entry{
			Runtime: rt,
			Status:  health.GetSummary(ctx, client(), rt.PID),
		})
	}
	return entries
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runtimeLabel names a runtime in user-facing messages.
func runtimeLabel(meta control.RuntimeMetadata) string {
	if meta.PackageName == "" {
		return fmt.Sprintf("runtime %d", meta.PID)
	}
	return fmt.Sprintf("%s (pid %d)", meta.PackageName, meta.PID)
}
