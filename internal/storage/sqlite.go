// Package storage persists extraction results and the background job queue
// in a local SQLite database.
package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DBFile is the database file name inside the data directory.
const DBFile = "cvextract.db"

// Store wraps a SQLite database holding extractions and jobs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database in dataDir and runs pending migrations.
// Pass ":memory:" for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	dsn := ":memory:"
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, DBFile)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One connection: an in-memory database is per-connection, and a single
	// writer avoids "database is locked".
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode=WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// DB exposes the underlying handle for tests and maintenance commands.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded migrations that are not yet recorded in
// schema_version, each in its own transaction.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}
		if err := s.applyMigration(version, "migrations/"+entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(version int, name string) error {
	content, err := migrationsFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("reading migration %s: %w", name, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(content)); err != nil {
		return fmt.Errorf("applying migration %d: %w", version, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("recording migration %d: %w", version, err)
	}
	return tx.Commit()
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Extractions ---

const extractionColumns = `id, source_name, sha256, created_at, cv_json, warnings_json`

// stampFormat is fixed-width so created_at sorts correctly as text.
const stampFormat = "2006-01-02T15:04:05.000000000Z07:00"

type scanner interface {
	Scan(dest ...any) error
}

func scanExtraction(row scanner) (Extraction, error) {
	var e Extraction
	var createdAt string
	if err := row.Scan(&e.ID, &e.SourceName, &e.SHA256, &createdAt, &e.CVJSON, &e.WarningsJSON); err != nil {
		return Extraction{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Extraction{}, fmt.Errorf("parsing created_at: %w", err)
	}
	e.CreatedAt = t
	return e, nil
}

func (s *Store) SaveExtraction(e Extraction) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.WarningsJSON == "" {
		e.WarningsJSON = "[]"
	}
	_, err := s.db.Exec(`INSERT INTO extractions (`+extractionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.SourceName, e.SHA256, e.CreatedAt.UTC().Format(stampFormat), e.CVJSON, e.WarningsJSON,
	)
	return err
}

func (s *Store) GetExtraction(id string) (Extraction, error) {
	e, err := scanExtraction(s.db.QueryRow(`SELECT `+extractionColumns+` FROM extractions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Extraction{}, ErrNotFound
	}
	return e, err
}

// FindExtractionBySHA returns the most recent extraction of a document with
// the given content hash.
func (s *Store) FindExtractionBySHA(sha string) (Extraction, error) {
	e, err := scanExtraction(s.db.QueryRow(`SELECT `+extractionColumns+` FROM extractions
		WHERE sha256 = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, sha))
	if errors.Is(err, sql.ErrNoRows) {
		return Extraction{}, ErrNotFound
	}
	return e, err
}

// ListExtractions returns up to limit extractions, newest first.
func (s *Store) ListExtractions(limit int) ([]Extraction, error) {
	rows, err := s.db.Query(`SELECT `+extractionColumns+` FROM extractions
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Extraction
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func (s *Store) DeleteExtraction(id string) error {
	res, err := s.db.Exec(`DELETE FROM extractions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Jobs ---

const jobColumns = `id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error, result_id`

func scanJob(row scanner) (Job, error) {
	var j Job
	var runAfter, createdAt, updatedAt string
	var lastError, resultID sql.NullString
	if err := row.Scan(&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError, &resultID); err != nil {
		return Job{}, err
	}
	j.LastError = lastError.String
	j.ResultID = resultID.String

	var err error
	if j.RunAfter, err = time.Parse(time.RFC3339, runAfter); err != nil {
		return Job{}, fmt.Errorf("parsing run_after for job %s: %w", j.ID, err)
	}
	if j.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Job{}, fmt.Errorf("parsing created_at for job %s: %w", j.ID, err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Job{}, fmt.Errorf("parsing updated_at for job %s: %w", j.ID, err)
	}
	return j, nil
}

func (s *Store) EnqueueJob(job Job) error {
	now := time.Now().UTC().Format(time.RFC3339)
	runAfter := now
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter.UTC().Format(time.RFC3339)
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.PayloadJSON, maxAttempts, runAfter, now, now,
	)
	return err
}

func (s *Store) GetJob(id string) (Job, error) {
	j, err := scanJob(s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	return j, err
}

// ClaimNextJob marks the oldest runnable pending job of one of the given
// types as running and returns it. It returns nil, nil when there is none.
func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE status = 'pending' AND run_after <= ? AND type IN (?` + strings.Repeat(",?", len(types)-1) + `)
		ORDER BY run_after ASC, created_at ASC
		LIMIT 1`

	args := make([]any, 0, len(types)+1)
	args = append(args, now)
	for _, t := range types {
		args = append(args, t)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback()

	j, err := scanJob(tx.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting next job: %w", err)
	}

	res, err := tx.Exec(`UPDATE jobs SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'`, now, j.ID)
	if err != nil {
		return nil, fmt.Errorf("updating job status: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	j.Status = "running"
	j.UpdatedAt, _ = time.Parse(time.RFC3339, now)
	return &j, nil
}

// CompleteJob marks a job completed and records the extraction it produced.
func (s *Store) CompleteJob(id, resultID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE jobs SET status = 'completed', result_id = ?, updated_at = ? WHERE id = ?`, resultID, now, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// FailJob records a failed attempt. The job is retried after 2^attempts
// seconds until max_attempts is reached, then marked failed.
func (s *Store) FailJob(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	attempts++

	if attempts >= maxAttempts {
		_, err = tx.Exec(`UPDATE jobs SET status = 'failed', attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, now.Format(time.RFC3339), id)
	} else {
		backoff := time.Duration(math.Pow(2, float64(attempts))) * time.Second
		_, err = tx.Exec(`UPDATE jobs SET status = 'pending', attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, now.Add(backoff).Format(time.RFC3339), now.Format(time.RFC3339), id)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}
