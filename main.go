// Package main provides the meetscribe CLI entry point.
// meetscribe manages the meeting transcription lifecycle for advisory
// sessions: live captions, provider descriptors, and content retrieval.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wealthpath/meetscribe/cmd"
)

func main() {
	// Set up signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	cmd.Execute(ctx)
}
