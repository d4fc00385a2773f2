package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext returns a context that is cancelled on the first SIGINT or
// SIGTERM. After that the default signal handling is restored, so a second
// Ctrl+C kills the process immediately.
func SignalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	context.AfterFunc(ctx, stop)
	return ctx, stop
}

// Fatal logs message with err and exits with status 1.
func Fatal(message string, err error, attrs ...any) {
	attrs = append([]any{"err", err.Error()}, attrs...)
	slog.Error(message, attrs...)
	os.Exit(1)
}
