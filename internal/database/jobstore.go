package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nao1215/onionwatch/internal/model"
)

// JobStoreFile is the file name of the scheduler database.
const JobStoreFile = "scheduler.db"

// JobStore persists rescan jobs in their own SQLite file.
type JobStore struct {
	db     *sql.DB
	dbPath string
}

// OpenJobStore opens or creates the scheduler database in dbDir.
func OpenJobStore(dbDir string, opts Options) (*JobStore, error) {
	db, path, err := openSQLite(dbDir, JobStoreFile, opts)
	if err != nil {
		return nil, err
	}
	js := &JobStore{db: db, dbPath: path}

	schema := `
	CREATE TABLE IF NOT EXISTS rescan_jobs (
		target_id        INTEGER PRIMARY KEY,
		url              TEXT NOT NULL,
		level            TEXT NOT NULL,
		interval_seconds INTEGER NOT NULL,
		next_run         TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_next_run ON rescan_jobs(next_run);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return js, nil
}

// Close closes the database connection.
func (js *JobStore) Close() error {
	return js.db.Close()
}

// SaveJob inserts or replaces the job of a target.
func (js *JobStore) SaveJob(ctx context.Context, job model.RescanJob) error {
	_, err := js.db.ExecContext(ctx, `
		INSERT INTO rescan_jobs (target_id, url, level, interval_seconds, next_run)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(target_id) DO UPDATE SET
			url = excluded.url,
			level = excluded.level,
			interval_seconds = excluded.interval_seconds,
			next_run = excluded.next_run`,
		job.TargetID, job.URL, string(job.Level), int64(job.Interval/time.Second), formatTimestamp(job.NextRun))
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// DeleteJob removes the job of a target and reports whether it existed.
func (js *JobStore) DeleteJob(ctx context.Context, targetID int64) (bool, error) {
	res, err := js.db.ExecContext(ctx, "DELETE FROM rescan_jobs WHERE target_id = ?", targetID)
	if err != nil {
		return false, fmt.Errorf("failed to delete job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete job: %w", err)
	}
	return n > 0, nil
}

// LoadJobs returns every persisted job ordered by next run.
func (js *JobStore) LoadJobs(ctx context.Context) ([]model.RescanJob, error) {
	rows, err := js.db.QueryContext(ctx,
		"SELECT target_id, url, level, interval_seconds, next_run FROM rescan_jobs ORDER BY next_run, target_id")
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.RescanJob, 0)
	for rows.Next() {
		var (
			job          model.RescanJob
			level, next  string
			intervalSecs int64
		)
		if err := rows.Scan(&job.TargetID, &job.URL, &level, &intervalSecs, &next); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job.Level = model.RiskLevel(level)
		job.Interval = time.Duration(intervalSecs) * time.Second
		job.NextRun = parseTimestamp(next)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
