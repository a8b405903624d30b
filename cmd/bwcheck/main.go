package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/scope-bandwidth/cmd/bwcheck/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var configPath, outputDir string
	var dryRun bool
	flag.StringVar(&configPath, "c", "", "Path to the configuration file, defaults apply if omitted")
	flag.StringVar(&outputDir, "o", "", "Output directory, overrides the configuration file")
	flag.BoolVar(&dryRun, "dry-run", false, "Validate the configuration and print the sweep plan")
	flag.Parse()

	config := app.DefaultConfig()
	if configPath != "" {
		var err error
		if config, err = app.LoadConfig(configPath); err != nil {
			logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
			os.Exit(1)
		}
	}

	if outputDir != "" {
		config.Output.Directory = outputDir
	}

	if err := config.Validate(); err != nil {
		logger.Error(fmt.Sprintf("invalid configuration: %s", err.Error()))
		os.Exit(1)
	}

	level, _ := config.Settings.Level()
	logLevel.Set(level)

	if dryRun {
		if err := app.DryRun(config, logger); err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
