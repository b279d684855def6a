// Command zsyncbench drives cells and limiters under contention and checks
// their atomicity guarantees.
//
//	zsyncbench counter --workers 64 --iterations 10000
//	zsyncbench limit --config bench.yaml --listen :9090
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
