package main

import (
	"context"
	"cses-scraper/cmd/cses-scraper/commands"
	"cses-scraper/internal/components/telemetry"
	"cses-scraper/lib/serviceutil"
	"log/slog"
	"time"
)

func main() {
	ctx, stop := serviceutil.SignalContext()
	defer stop()

	telemetry.InitSlog(false)
	otel, err := telemetry.SetupFromEnv(ctx, "cses-scraper")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otel.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	}()
	if otel.MeterProvider != nil {
		telemetry.InstrumentPerfStats(ctx, 15*time.Second)
	}

	commands.ExecuteContext(ctx)
}
