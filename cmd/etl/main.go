package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"log/slog"

	"github.com/kapu/steam-analytics-etl-go/internal/app"
	"github.com/kapu/steam-analytics-etl-go/internal/config"
	"github.com/kapu/steam-analytics-etl-go/internal/health"
	"github.com/kapu/steam-analytics-etl-go/internal/platform/bootstrap"
)

func main() {
	runMode := flag.String("run", "", "run the pipeline once in the given mode (full|metadata|pricing|timeseries) and exit")
	appIDs := flag.String("appids", "", "comma-separated appids to restrict the one-shot run to")
	force := flag.Bool("force", false, "do not reuse cached pricing snapshots")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	health.Init(cfg.Version)

	logger.Info("Steam analytics ETL starting",
		slog.String("version", cfg.Version),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runtime, err := app.BuildRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to assemble application services", slog.Any("error", err))
		os.Exit(1)
	}
	defer runtime.Close()

	if *runMode != "" {
		ids, err := parseAppIDs(*appIDs)
		if err != nil {
			logger.Error("Invalid -appids flag", slog.Any("error", err))
			os.Exit(1)
		}
		if err := runtime.RunOnce(ctx, *runMode, ids, *force); err != nil {
			logger.Error("Pipeline run failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := runtime.Run(ctx); err != nil {
		logger.Error("Server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func parseAppIDs(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid appid %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
