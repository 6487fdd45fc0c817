package main

import (
	"os"

	"github.com/firefly-engineering/rtctl/cmd"
	"github.com/firefly-engineering/rtctl/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
