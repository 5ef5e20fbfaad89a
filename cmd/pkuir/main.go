// Command pkuir trains and explains the HOMA-IR boosting model.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/DeepenData/pkuir/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.GetLoggerWithName("pkuir").Error("command failed", err)
		stop()
		os.Exit(1)
	}
}
