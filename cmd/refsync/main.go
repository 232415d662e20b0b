// Package main is the entry point for the refsync CLI.
//
// refsync clones the repositories listed in a project file and checks each
// one out at its requested commit, branch or tag. Interrupting the process
// cancels in-flight repositories and leaves the others untouched.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"refsync/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp()
	if err := cli.Execute(ctx, app, os.Args[1:]); err != nil {
		app.Logger.Error("refsync failed", "error", err)
		stop()
		os.Exit(1)
	}
}
