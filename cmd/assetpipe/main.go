package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitrise-io/go-utils/v2/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCommand(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		log.NewLogger().Errorf("%s", err)
		os.Exit(1)
	}
}
