// Package main is the entry point for the remotectl CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tOgg1/remotectl/internal/cli"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.Execute(ctx, version, commit, date)
	stop()

	if err != nil {
		cli.RenderError(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}
