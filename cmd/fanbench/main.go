package main

import (
	"context"
	"os"

	"github.com/windmix/fanbench/internal/app"
	"github.com/windmix/fanbench/internal/worker"
)

func main() {
	// Process-model children re-enter here and never reach the command tree.
	if worker.IsChild() {
		os.Exit(worker.RunChild(os.Stdout))
	}
	os.Exit(app.New(os.Stdout, os.Stderr).Run(context.Background(), os.Args[1:]))
}
