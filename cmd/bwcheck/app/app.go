package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roman-kulish/scope-bandwidth/internal/chart"
	"github.com/roman-kulish/scope-bandwidth/internal/instrument"
	"github.com/roman-kulish/scope-bandwidth/internal/storage"
	"github.com/roman-kulish/scope-bandwidth/internal/sweep"
	"github.com/roman-kulish/scope-bandwidth/internal/visa"
)

const defaultDevice = "scope"

// measurement is the outcome of a completed sweep
type measurement struct {
	result *sweep.Result
	idn    string
	device string
	chart  *chart.Chart
}

// Run performs the bandwidth check: it connects to both instruments, sweeps
// the generator, then writes the result table once the instruments are released.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	plan, err := config.Sweep.Plan()
	if err != nil {
		return fmt.Errorf("creating sweep plan: %w", err)
	}

	if err = ensureDirectory(config.Output.Directory); err != nil {
		return err
	}

	rm := visa.NewResourceManager(logger, visa.WithStaticResources(config.Resources...))

	m, err := connectAndMeasure(ctx, rm, config, plan, logger)
	if err != nil {
		return err
	}

	return report(ctx, config, m, logger)
}

// DryRun validates the configuration and logs the frequency plan without touching any instrument
func DryRun(config *Config, logger *slog.Logger) error {
	plan, err := config.Sweep.Plan()
	if err != nil {
		return fmt.Errorf("creating sweep plan: %w", err)
	}

	for i, f := range plan.Values() {
		logger.Info(fmt.Sprintf("%d kHz", int64(f)), slog.Int("index", i), slog.String("frequency", sweep.HumanHz(f)))
	}

	logger.Info("dry run",
		slog.Int("points", plan.Len()),
		slog.Duration("settle", time.Duration(config.Sweep.Settle)),
		slog.Duration("estimated", time.Duration(plan.Len())*time.Duration(config.Sweep.Settle)))

	return nil
}

func connectAndMeasure(ctx context.Context, rm *visa.ResourceManager, config *Config, plan sweep.Plan, logger *slog.Logger) (*measurement, error) {
	scopeSession, err := openSession(ctx, rm, &config.Scope.SessionConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to scope: %w", err)
	}
	defer closeSession(scopeSession, logger)

	generatorSession, err := openSession(ctx, rm, &config.Generator.SessionConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to generator: %w", err)
	}
	defer closeSession(generatorSession, logger)

	return measure(ctx, config, plan, scopeSession, generatorSession, logger)
}

// measure configures both instruments and runs the sweep
func measure(ctx context.Context, config *Config, plan sweep.Plan, scopeSession, generatorSession instrument.Session, logger *slog.Logger) (m *measurement, err error) {
	scope, err := instrument.NewScope(scopeSession, config.Scope.ScopeConfig, instrument.WithScopeLogger(logger))
	if err != nil {
		return nil, err
	}

	generator, err := instrument.NewGenerator(generatorSession, config.Generator.GeneratorConfig, instrument.WithGeneratorLogger(logger))
	if err != nil {
		return nil, err
	}

	idn, err := scope.Init(ctx)
	if err != nil {
		return nil, err
	}
	if _, err = scope.Configure(ctx); err != nil {
		return nil, err
	}

	if err = generator.Init(ctx); err != nil {
		return nil, err
	}
	if err = generator.Configure(ctx); err != nil {
		return nil, err
	}
	defer func() {
		// the output is switched off even when the sweep was cancelled
		if sErr := generator.Shutdown(context.WithoutCancel(ctx)); sErr != nil {
			logger.Warn(sErr.Error())
		}
	}()

	if err = sweep.Wait(ctx, time.Duration(config.Sweep.Settle)); err != nil {
		return nil, err
	}

	m = &measurement{
		idn:    idn,
		device: deviceName(config.Output.Device, idn),
	}
	started := time.Now()

	options := []func(*sweep.Controller){
		sweep.WithLogger(logger),
		sweep.WithSettleTime(time.Duration(config.Sweep.Settle)),
		sweep.WithStartTime(started),
	}

	if config.Output.Plot {
		path := filepath.Join(config.Output.Directory, storage.FileName(m.device, "png", started))
		if m.chart, err = chart.New(path, chart.Config{Device: m.device}); err != nil {
			return nil, fmt.Errorf("creating chart: %w", err)
		}
		options = append(options, sweep.WithPlotter(m.chart))

		logger.Info("live chart", slog.String("path", path))
	}

	if m.result, err = sweep.NewController(generator, scope, options...).Run(ctx, plan); err != nil {
		return nil, err
	}

	return m, nil
}

// report analyses the result and writes the result table, chart and archive
func report(ctx context.Context, config *Config, m *measurement, logger *slog.Logger) error {
	res := m.result
	analysis := sweep.Analyze(res)

	attrs := []any{
		slog.Float64("reference", analysis.Reference),
		slog.Float64("stopVpp", analysis.StopAmplitude),
		slog.String("stop", sweep.HumanHz(analysis.StopFrequency)),
	}
	if analysis.Found {
		logger.Info(fmt.Sprintf("-3 dB at %s", sweep.HumanHz(analysis.CutoffFrequency)), attrs...)
	} else {
		logger.Info(fmt.Sprintf("-3 dB above %s", sweep.HumanHz(analysis.StopFrequency)), attrs...)
	}

	if m.chart != nil {
		m.chart.SetAnalysis(analysis)
		if err := m.chart.Update(ctx, res, res.Len()-1); err != nil {
			logger.Warn(fmt.Sprintf("updating chart: %s", err.Error()))
		}
	}

	path, err := storage.SaveCSV(config.Output.Directory, m.device, res, res.Started)
	if err != nil {
		return fmt.Errorf("saving results: %w", err)
	}
	logger.Info("results saved", slog.String("path", path), slog.Int("points", res.Len()))

	if config.Output.Archive {
		if err = archive(ctx, config, m); err != nil {
			return err
		}
	}

	if config.Sweep.MinVpp != nil {
		if err = analysis.Verify(*config.Sweep.MinVpp); err != nil {
			return err
		}
		logger.Info("bandwidth check passed", slog.Float64("minVpp", *config.Sweep.MinVpp))
	}

	return nil
}

func archive(ctx context.Context, config *Config, m *measurement) (err error) {
	path := filepath.Join(config.Output.Directory, storage.FileName(m.device, "sqlite", m.result.Started))

	store := storage.NewSqliteStore(path)
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	if err = store.SaveResult(ctx, m.result, m.device, &m.idn, config); err != nil {
		return fmt.Errorf("archiving run: %w", err)
	}
	return nil
}

func openSession(ctx context.Context, rm *visa.ResourceManager, config *SessionConfig, logger *slog.Logger) (*visa.Session, error) {
	resource := config.Resource
	if resource == "" {
		var err error
		if resource, err = rm.FindResource(ctx, config.Pattern); err != nil {
			return nil, err
		}
	}

	options, err := config.Options(logger)
	if err != nil {
		return nil, err
	}

	return rm.Open(ctx, resource, options...)
}

func closeSession(s *visa.Session, logger *slog.Logger) {
	if err := s.Close(); err != nil {
		logger.Warn(err.Error())
		return
	}
	logger.Debug("session closed", slog.String("resource", s.Resource()))
}

// deviceName returns the configured device name or the model field of the *IDN? reply
func deviceName(configured, idn string) string {
	if configured != "" {
		return configured
	}

	fields := strings.Split(idn, ",")
	if len(fields) >= 2 && strings.TrimSpace(fields[1]) != "" {
		return strings.TrimSpace(fields[1])
	}
	return defaultDevice
}

func ensureDirectory(dir string) error {
	stat, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output directory '%s' does not exist: %w", dir, err)
		}
		return fmt.Errorf("checking output directory: %w", err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("invalid output directory '%s'", dir)
	}
	return nil
}
