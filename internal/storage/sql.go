package storage

import (
	_ "embed"
)

const (
	insertRunSQL = `
INSERT INTO runs (id,
                  start_time,
                  device,
                  scope_idn,
                  config)
VALUES (?, ?, ?, ?, ?)`

	selectRunSQL = `
SELECT 
    id, 
    start_time, 
    device, 
    scope_idn, 
    config 
FROM runs 
WHERE 
    id = ?`

	selectRunsSQL = `
SELECT 
    id, 
    start_time, 
    device, 
    scope_idn, 
    config 
FROM runs
ORDER BY start_time`

	selectPointsSQL = `
SELECT 
    idx, 
    frequency, 
    amplitude 
FROM points 
WHERE 
    run_id = ?
ORDER BY idx`

	insertPointSQL = `
INSERT INTO points (run_id,
                    idx,
                    frequency,
                    amplitude)
VALUES `
)

//go:embed schema.sql
var initSchemaSQL string
