package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/rtctl/internal/app"
	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Stream a runtime's logs",
	Long: `Stream log records from a runtime until it closes the stream or the
command is interrupted.

Records are printed as received, one per line. --render formats JSON
records for reading; --pretty asks the runtime to do the formatting.`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsSel     selectorFlags
	logsLevel   string
	logsPretty  bool
	logsService string
	logsRender  bool
	logsNoColor bool
	logsBuffer  int
)

func init() {
	logsSel.register(logsCmd)
	logsCmd.Flags().StringVarP(&logsLevel, "level", "l", "", "Minimum level (trace, debug, info, warn, error, fatal)")
	logsCmd.Flags().BoolVar(&logsPretty, "pretty", false, "Ask the runtime for pretty-printed records")
	logsCmd.Flags().StringVarP(&logsService, "service", "s", "", "Only stream records of this service")
	logsCmd.Flags().BoolVar(&logsRender, "render", false, "Render JSON records for reading")
	logsCmd.Flags().BoolVar(&logsNoColor, "no-color", false, "Disable colors when rendering")
	logsCmd.Flags().IntVar(&logsBuffer, "buffer", 0, "Records buffered before reading from the runtime pauses (default 256)")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	meta, err := resolveRuntime(ctx, &logsSel)
	if err != nil {
		return err
	}

	filter := control.LogFilter{
		Level:     logsLevel,
		Pretty:    logsPretty,
		ServiceID: logsService,
	}
	c := client()
	if logsBuffer > 0 {
		c = app.Default.NewClient(control.WithLogHighWaterMark(logsBuffer))
		defer c.Close()
	}
	stream, err := c.StreamLogs(ctx, meta.PID, filter)
	if err != nil {
		return err
	}
	defer stream.Close()

	logging.Debug("streaming logs", "pid", meta.PID, "filter", filter.Query().Encode())

	out := cmd.OutOrStdout()
	var renderer *logging.RecordRenderer
	if logsRender {
		renderer = logging.NewRecordRenderer(out, logsNoColor)
	}

	for record, err := range stream.All(ctx) {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if renderer != nil {
			if err := renderer.Render(record); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintln(out, strings.TrimRight(string(record), "\n")); err != nil {
			return err
		}
	}
	return nil
}
