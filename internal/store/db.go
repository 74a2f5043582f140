package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"pokeflow/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

// ErrNotInitialized is returned by read operations before InitDB.
var ErrNotInitialized = errors.New("store: database not initialized")

// InitDB opens the run-tracking database and creates the schema. The
// store is optional: CLI one-shot runs skip it, and every Save/Update
// becomes a no-op until InitDB is called.
func InitDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			spec TEXT,
			status TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_errors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			error_message TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			result TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_stages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			stage TEXT,
			status TEXT,
			started_at DATETIME,
			finished_at DATETIME,
			record_count INTEGER
		);`,
	}
	for _, stmt := range tables {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun stores a new analysis run in pending state.
func SaveRun(runID string, spec model.RunSpec) error {
	if db == nil {
		return nil
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, specJSON, "pending", now, now)
	return err
}

// UpdateRunStatus updates a run's status.
func UpdateRunStatus(runID, status string) error {
	if db == nil {
		return nil
	}
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SaveRunError records an error for a run.
func SaveRunError(runID string, err error) error {
	if db == nil || err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := db.Exec(`INSERT INTO run_errors (run_id, error_message, created_at) VALUES (?, ?, ?)`,
		runID, err.Error(), now)
	return e
}

// SaveRunResult stores the aggregate produced by a run as JSON.
func SaveRunResult(runID string, result interface{}) error {
	if db == nil {
		return nil
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO run_results (run_id, result, created_at) VALUES (?, ?, ?)`,
		runID, resultJSON, now)
	return err
}

// SaveStageProgress records the state of one pipeline stage.
func SaveStageProgress(runID, stage, status string, startedAt, finishedAt *time.Time, recordCount int) error {
	if db == nil {
		return nil
	}
	_, err := db.Exec(`INSERT INTO run_stages (run_id, stage, status, started_at, finished_at, record_count) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stage, status, startedAt, finishedAt, recordCount)
	return err
}

// ListRuns returns all runs, newest first.
func ListRuns() ([]model.RunSummary, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := db.Query(`SELECT id, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var r model.RunSummary
		if err := rows.Scan(&r.ID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches the full spec and status of one run.
func GetRun(runID string) (map[string]interface{}, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	var specJSON, status string
	var createdAt, updatedAt time.Time

	err := db.QueryRow(`SELECT spec, status, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&specJSON, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	var spec model.RunSpec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"id":        runID,
		"spec":      spec,
		"status":    status,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
	}, nil
}

// GetRunErrors returns all recorded errors of a run.
func GetRunErrors(runID string) ([]map[string]interface{}, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := db.Query(`SELECT error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY created_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []map[string]interface{}
	for rows.Next() {
		var msg string
		var at time.Time
		if err := rows.Scan(&msg, &at); err != nil {
			return nil, err
		}
		errs = append(errs, map[string]interface{}{"message": msg, "createdAt": at})
	}
	return errs, rows.Err()
}

// GetRunResults returns the stored aggregates of a run as raw JSON.
func GetRunResults(runID string) ([]json.RawMessage, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := db.Query(`SELECT result FROM run_results WHERE run_id = ? ORDER BY created_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []json.RawMessage
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		results = append(results, json.RawMessage(raw))
	}
	return results, rows.Err()
}
