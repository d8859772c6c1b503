package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/pvzzle/ethwallet/internal/app"
	klog "github.com/pvzzle/ethwallet/internal/log"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		klog.Logger.Fatal().Err(err).Msg("app stopped")
	}
}
