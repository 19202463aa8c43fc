package main

import (
	"fmt"
	"os"

	"github.com/dtnitsch/llm-archive-reader/internal/archives"
	"github.com/dtnitsch/llm-archive-reader/internal/common"
	"github.com/dtnitsch/llm-archive-reader/internal/serve"
	"github.com/dtnitsch/llm-archive-reader/pkg/faults"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:     "lar",
		Usage:    "Read offline knowledge archives from the command line or over MCP",
		Version:  version,
		Flags:    common.GlobalFlags(),
		Commands: append(archives.Commands(), serve.Command()),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps error codes to process exit statuses.
func exitCode(err error) int {
	switch {
	case faults.IsNotFound(err):
		return 3
	case faults.IsInvalidInput(err), faults.IsInvalidPath(err):
		return 4
	case faults.IsConfig(err):
		return 5
	default:
		return 1
	}
}
