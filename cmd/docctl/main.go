package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	// post-run hooks are skipped when a command fails
	if closeApp != nil {
		_ = closeApp()
	}
	if err != nil {
		os.Exit(1)
	}
}
