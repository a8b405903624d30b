package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/scope-bandwidth/internal/chart"
	"github.com/roman-kulish/scope-bandwidth/internal/storage"
	"github.com/roman-kulish/scope-bandwidth/internal/sweep"
)

// Run renders the chart of an archived run
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	if config.List {
		return listRuns(ctx, store, config, logger)
	}

	return renderRun(ctx, store, config, logger)
}

func listRuns(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) error {
	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}

	for _, run := range runs {
		logger.Info("run",
			slog.String("id", run.ID.String()),
			slog.String("device", run.Device),
			slog.String("started", run.StartTime.In(config.TimeZone).Format(time.DateTime)))
	}
	return nil
}

func renderRun(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) error {
	var run *storage.Run
	var err error
	if config.RunID != nil {
		run, err = store.Run(ctx, *config.RunID)
	} else {
		run, err = store.LatestRun(ctx)
	}
	if err != nil {
		return err
	}

	res, err := store.Result(ctx, run)
	if err != nil {
		return err
	}

	analysis := sweep.Analyze(res)
	logger.Info("run loaded",
		slog.String("id", run.ID.String()),
		slog.String("device", run.Device),
		slog.String("started", run.StartTime.In(config.TimeZone).Format(time.DateTime)),
		slog.Int("points", res.Len()),
		slog.Bool("cutoffFound", analysis.Found))

	c, err := chart.New(config.OutputFile, chart.Config{
		Device:   run.Device,
		Location: config.TimeZone,
	})
	if err != nil {
		return fmt.Errorf("creating chart: %w", err)
	}
	c.SetAnalysis(analysis)

	if err = c.Update(ctx, res, res.Len()-1); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}

	logger.Info("chart written", slog.String("path", config.OutputFile))
	return nil
}
