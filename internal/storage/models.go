package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Run describes an archived sweep
type Run struct {
	ID        uuid.UUID
	StartTime time.Time
	Device    string
	ScopeIDN  *string
	Config    *string // JSON
}

// Point is one row of the result table
type Point struct {
	Index     int
	Frequency float64 // kHz
	Amplitude float64 // Vpp
}

type runData struct {
	ID        uuid.UUID
	StartTime time.Time
	Device    string
	ScopeIDN  sql.NullString
	Config    sql.NullString
}
