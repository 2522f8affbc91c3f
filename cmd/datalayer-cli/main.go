// Package main provides the entry point for datalayer-cli.
//
// datalayer-cli inspects and maintains a data-layer store: one-shot
// commands, snapshots, an interactive shell, and a long-running "run"
// mode that purges expired records, emits session boundaries and serves
// metrics.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/yndnr/datalayer-go/internal/cli/command"
	"github.com/yndnr/datalayer-go/internal/core/domain"
)

func main() {
	if err := command.App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for bad arguments, 1 otherwise.
func exitCode(err error) int {
	if strings.HasPrefix(domain.GetErrorCode(err), "DL-ARG-") {
		return 2
	}
	return 1
}
