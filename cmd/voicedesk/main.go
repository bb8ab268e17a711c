package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voicedesk/voicedesk/pkg/logging"
	"github.com/voicedesk/voicedesk/pkg/runner"
	"github.com/voicedesk/voicedesk/pkg/voicedesk"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := voicedesk.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	slog.SetDefault(logger)

	app, err := voicedesk.NewApp(cfg, logger)
	if err != nil {
		logger.Error("startup_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	drainTimeout := time.Duration(cfg.Server.DrainTimeoutMS) * time.Millisecond
	lc := runner.NewLifecycleRunner(app, runner.Hooks{
		OnStart: func() {
			go func() {
				if err := app.Serve(); err != nil {
					logger.Error("server_failed", slog.String("error", err.Error()))
					stop()
				}
			}()
		},
		OnStop: func() {
			logger.Info("server_stopped")
		},
	}, drainTimeout)

	if err := lc.Run(ctx); err != nil {
		logger.Error("shutdown_error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
