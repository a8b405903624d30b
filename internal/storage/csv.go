// Package storage writes sweep results: the result table as CSV and an
// optional Sqlite archive of runs.
package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/roman-kulish/scope-bandwidth/internal/sweep"
)

const timestampFormat = "20060102150405"

var csvHeader = []string{"Freq", "Amp"}

// ErrIncompleteResult is returned for a result without one amplitude per frequency
var ErrIncompleteResult = errors.New("incomplete result")

// FileName returns "<device>_<YYYYMMDDHHMMSS>.<ext>". Characters that are not
// safe in file names are replaced in the device name.
func FileName(device, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", sanitize(device), t.Format(timestampFormat), ext)
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(s))

	if s == "" {
		return "scope"
	}
	return s
}

// WriteCSV writes the result table: a "Freq,Amp" header and one row per point
func WriteCSV(w io.Writer, res *sweep.Result) error {
	if len(res.Amplitudes) != len(res.Frequencies) {
		return fmt.Errorf("%w: %d frequencies, %d amplitudes", ErrIncompleteResult, len(res.Frequencies), len(res.Amplitudes))
	}

	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for f, a := range res.All() {
		record := []string{
			strconv.FormatFloat(f, 'f', -1, 64),
			strconv.FormatFloat(a, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the result table to a new file in dir and returns its path.
// An existing file is never overwritten or appended to.
func SaveCSV(dir, device string, res *sweep.Result, t time.Time) (path string, err error) {
	path = filepath.Join(dir, FileName(device, "csv", t))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating result file: %w", err)
	}
	defer func() {
		closeWithError(f, &err)
		if err != nil {
			err = errors.Join(err, os.Remove(f.Name()))
			path = ""
		}
	}()

	if err = WriteCSV(f, res); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	return path, nil
}
