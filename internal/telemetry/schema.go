package telemetry

import "codeberg.org/mutker/undervoltctl/internal/storage"

// SchemaVersion is bumped on breaking changes to the stability_tests table.
const SchemaVersion = 1

var schema = storage.Schema{
	Name:    "telemetry",
	Version: SchemaVersion,
	Tables:  []string{"stability_tests"},
	CreateSQL: `
	CREATE TABLE IF NOT EXISTS stability_tests (
	    id                INTEGER PRIMARY KEY AUTOINCREMENT,
	    run_id            TEXT NOT NULL,
	    timestamp         INTEGER NOT NULL,
	    core_id           INTEGER NOT NULL CHECK (typeof(core_id) = 'integer'),
	    frequency_mhz     INTEGER NOT NULL CHECK (typeof(frequency_mhz) = 'integer'),
	    voltage_mv        INTEGER NOT NULL CHECK (voltage_mv BETWEEN -100 AND 0),
	    passed            INTEGER NOT NULL CHECK (passed IN (0, 1)),
	    temperature_abort INTEGER NOT NULL CHECK (temperature_abort IN (0, 1)),
	    timed_out         INTEGER NOT NULL CHECK (timed_out IN (0, 1)),
	    max_temperature   REAL NOT NULL,
	    duration_ms       INTEGER NOT NULL,
	    error             TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_stability_tests_core ON stability_tests (core_id, timestamp);`,
}

const (
	insertRecordSQL = `
    INSERT INTO stability_tests (
        run_id, timestamp, core_id, frequency_mhz, voltage_mv,
        passed, temperature_abort, timed_out,
        max_temperature, duration_ms, error
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectRecordsSQL = `
    SELECT run_id, timestamp, core_id, frequency_mhz, voltage_mv,
           passed, temperature_abort, timed_out,
           max_temperature, duration_ms, error
    FROM stability_tests
    WHERE core_id = ?
    ORDER BY id DESC
    LIMIT ?`
)
