package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/roadrallyhq/rally-api/cmd/importer/cmds"
	"github.com/roadrallyhq/rally-api/internal/logger"
	otelrally "github.com/roadrallyhq/rally-api/internal/otel"
)

func runApp(ctx context.Context) int {
	useOTLP, err := strconv.ParseBool(os.Getenv("USE_OTLP"))
	if err != nil {
		useOTLP = false
	}

	shutdown, err := otelrally.SetupOTelSDK(ctx, useOTLP)
	if err != nil {
		logger.Logger.Warn("failed to setup otel sdk")
	}
	defer func() {
		fail := shutdown(ctx)
		if fail != nil {
			logger.Logger.Warn("no clean shutdown for otel", "error", fail)
		}
	}()

	err = cmds.Execute(ctx)
	if err != nil {
		logger.Logger.Error("error executing subcommands", "error", err)
		return 1
	}

	return 0
}

func main() {
	logger.LogLevel.Set(slog.LevelDebug)
	logger.InitSlog()

	ctx := context.Background()

	os.Exit(runApp(ctx))
}
