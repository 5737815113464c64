package runtime

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownSignals start a graceful drain: SIGTERM from the container runtime,
// SIGINT from a terminal.
var ShutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SignalContext is cancelled by the first shutdown signal.
func SignalContext() (context.Context, context.CancelFunc) {
	return WithShutdownSignals(context.Background())
}

// WithShutdownSignals derives a context cancelled by the first shutdown signal
// or by parent. Once it is done the default handlers are restored, so a second
// signal terminates a service stuck in its drain.
func WithShutdownSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, ShutdownSignals...)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}
