package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/scope-bandwidth/internal/chart"
)

type Config struct {
	DBPath     string
	RunID      *uuid.UUID // latest run if nil
	OutputFile string
	List       bool
	TimeZone   *time.Location
}

func NewConfig() *Config {
	return &Config{
		TimeZone: time.Local,
	}
}

func NewConfigFromCLI() (*Config, error) {
	return parseFlags(flag.CommandLine, os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var runID, timeZone string
	fs.StringVar(&c.DBPath, "db", "", "Path to the archive file")
	fs.StringVar(&runID, "r", "", "Run ID, defaults to the latest run")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output image (.png, .jpg)")
	fs.BoolVar(&c.List, "l", false, "List the archived runs and exit")
	fs.StringVar(&timeZone, "tz", "", "Time zone of the timestamps shown on the chart, e.g. Europe/Berlin")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	err := func() error {
		if c.DBPath == "" {
			return errors.New("db path is required")
		}

		if runID != "" {
			id, err := uuid.Parse(runID)
			if err != nil {
				return fmt.Errorf("invalid run id: %w", err)
			}
			c.RunID = &id
		}

		if timeZone != "" {
			loc, err := time.LoadLocation(timeZone)
			if err != nil {
				return fmt.Errorf("invalid time zone: %w", err)
			}
			c.TimeZone = loc
		}

		if c.List {
			return nil
		}

		if c.OutputFile == "" {
			return errors.New("output file is required")
		}
		if _, err := chart.FormatFromPath(c.OutputFile); err != nil {
			return err
		}
		return nil
	}()

	if err != nil {
		fs.Usage()
		return nil, err
	}

	return c, nil
}
