// Command xpctl operates the block_xp event observer by hand.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alem-hub/xp-observer/internal/interface/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
