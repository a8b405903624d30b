package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/scope-bandwidth/internal/sweep"
)

const maxBatchSize = 100

// ErrRunNotFound is returned when the archive has no run with the requested ID
var ErrRunNotFound = errors.New("run not found")

// WithMaxBatchSize sets the maximum number of points stored within a single transaction
func WithMaxBatchSize(size int) func(*SqliteStore) {
	return func(s *SqliteStore) {
		if size > 0 {
			s.maxBatchSize = size
		}
	}
}

// SqliteStore archives sweep runs in a Sqlite database
type SqliteStore struct {
	dbPath       string
	maxBatchSize int

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the database file at dbPath.
// Connections are opened on first use; the schema is created by the first write.
func NewSqliteStore(dbPath string, options ...func(*SqliteStore)) *SqliteStore {
	s := SqliteStore{
		dbPath:       dbPath,
		maxBatchSize: maxBatchSize,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// CreateRun records a run. The config is stored as JSON unless given as a string or bytes.
func (s *SqliteStore) CreateRun(ctx context.Context, run Run, config any) (err error) {
	configData, err := configToJSON(config)
	if err != nil {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertRunSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(ctx, run.ID, run.StartTime.UTC(), run.Device, toNullString(run.ScopeIDN), configData); err != nil {
		err = fmt.Errorf("inserting run: %w", err)
	}
	return
}

// StorePoints stores the points of a run, at most maxBatchSize points per transaction
func (s *SqliteStore) StorePoints(ctx context.Context, runID uuid.UUID, points []Point) error {
	for chunk := range slices.Chunk(points, s.maxBatchSize) {
		if err := s.storePoints(ctx, runID, chunk); err != nil {
			return fmt.Errorf("storing points: %w", err)
		}
	}
	return nil
}

func (s *SqliteStore) storePoints(ctx context.Context, runID uuid.UUID, points []Point) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]any, 0, len(points)*4)

	var sb strings.Builder
	sb.WriteString(insertPointSQL)

	for i, p := range points {
		values = append(values, runID, p.Index, p.Frequency, p.Amplitude)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?)")
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting points: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// SaveResult archives a complete sweep result as a new run
func (s *SqliteStore) SaveResult(ctx context.Context, res *sweep.Result, device string, scopeIDN *string, config any) error {
	run := Run{
		ID:        res.RunID,
		StartTime: res.Started,
		Device:    device,
		ScopeIDN:  scopeIDN,
	}
	if err := s.CreateRun(ctx, run, config); err != nil {
		return err
	}

	points := make([]Point, 0, res.Len())
	for f, a := range res.All() {
		points = append(points, Point{Index: len(points), Frequency: f, Amplitude: a})
	}

	return s.StorePoints(ctx, res.RunID, points)
}

func (s *SqliteStore) Run(ctx context.Context, id uuid.UUID) (run *Run, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectRunSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var d runData
	err = stmt.QueryRowContext(ctx, id).Scan(&d.ID, &d.StartTime, &d.Device, &d.ScopeIDN, &d.Config)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: %s", ErrRunNotFound, id)
		return
	}
	if err != nil {
		err = fmt.Errorf("scanning run: %w", err)
		return
	}

	return toRun(d), nil
}

// Runs returns all archived runs, oldest first
func (s *SqliteStore) Runs(ctx context.Context) (runs []*Run, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectRunsSQL)
	if err != nil {
		err = fmt.Errorf("querying runs: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var d runData
		if err = rows.Scan(&d.ID, &d.StartTime, &d.Device, &d.ScopeIDN, &d.Config); err != nil {
			err = fmt.Errorf("scanning run: %w", err)
			return
		}
		runs = append(runs, toRun(d))
	}
	err = rows.Err()
	return
}

// LatestRun returns the most recently started run
func (s *SqliteStore) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := s.Runs(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: archive is empty", ErrRunNotFound)
	}
	return runs[len(runs)-1], nil
}

// Points returns the points of a run in sweep order
func (s *SqliteStore) Points(ctx context.Context, runID uuid.UUID) (points []Point, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectPointsSQL, runID)
	if err != nil {
		err = fmt.Errorf("querying points: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var p Point
		if err = rows.Scan(&p.Index, &p.Frequency, &p.Amplitude); err != nil {
			err = fmt.Errorf("scanning point: %w", err)
			return
		}
		points = append(points, p)
	}
	err = rows.Err()
	return
}

// Result rebuilds the sweep result of an archived run
func (s *SqliteStore) Result(ctx context.Context, run *Run) (*sweep.Result, error) {
	points, err := s.Points(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("run %s has no points", run.ID)
	}

	res := sweep.Result{
		RunID:       run.ID,
		Started:     run.StartTime,
		Frequencies: make([]float64, len(points)),
		Amplitudes:  make([]float64, len(points)),
	}
	for i, p := range points {
		res.Frequencies[i] = p.Frequency
		res.Amplitudes[i] = p.Amplitude
	}

	return &res, nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
