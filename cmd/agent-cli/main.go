package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/cli"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	observability.Sync()
	if err != nil {
		os.Exit(1)
	}
}
