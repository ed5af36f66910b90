package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrJobNotFound = errors.New("research job not found")

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job is one persisted research run.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	Query       string          `json:"query"`
	Breadth     int             `json:"breadth"`
	Depth       int             `json:"depth"`
	Status      JobStatus       `json:"status"`
	Progress    json.RawMessage `json:"progress,omitempty"`
	Report      *string         `json:"report,omitempty"`
	Learnings   []string        `json:"learnings,omitempty"`
	VisitedURLs []string        `json:"visitedUrls,omitempty"`
	Error       *string         `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

const jobColumns = `id, query, breadth, depth, status, progress, report, learnings, visited_urls, error, created_at, updated_at`

func (db *PostgresDB) CreateJob(ctx context.Context, query string, breadth, depth int) (*Job, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO research_jobs (id, query, breadth, depth, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+jobColumns,
		uuid.New(), query, breadth, depth, StatusPending)

	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

func (db *PostgresDB) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := scanJob(db.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM research_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (db *PostgresDB) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx, `SELECT `+jobColumns+` FROM research_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return jobs, nil
}

func (db *PostgresDB) SetJobStatus(ctx context.Context, id uuid.UUID, status JobStatus) error {
	_, err := db.Pool.Exec(ctx, "UPDATE research_jobs SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

func (db *PostgresDB) SaveProgress(ctx context.Context, id uuid.UUID, progress json.RawMessage) error {
	_, err := db.Pool.Exec(ctx, "UPDATE research_jobs SET progress = $2, updated_at = NOW() WHERE id = $1", id, progress)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// SaveResult stores the assembled report and the aggregated research without
// changing the job status.
func (db *PostgresDB) SaveResult(ctx context.Context, id uuid.UUID, report string, learnings, visitedURLs []string) error {
	learningsJSON, err := json.Marshal(nonNil(learnings))
	if err != nil {
		return fmt.Errorf("failed to marshal learnings: %w", err)
	}
	urlsJSON, err := json.Marshal(nonNil(visitedURLs))
	if err != nil {
		return fmt.Errorf("failed to marshal visited urls: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		UPDATE research_jobs
		SET report = $2, learnings = $3, visited_urls = $4, updated_at = NOW()
		WHERE id = $1
	`, id, report, learningsJSON, urlsJSON)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

func (db *PostgresDB) FailJob(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := db.Pool.Exec(ctx,
		"UPDATE research_jobs SET status = $2, error = $3, updated_at = NOW() WHERE id = $1",
		id, StatusFailed, reason)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

func (db *PostgresDB) AppendLog(ctx context.Context, jobID uuid.UUID, ts time.Time, level, message string, metadata json.RawMessage) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO research_logs (job_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, jobID, ts, level, message, metadata)
	if err != nil {
		return fmt.Errorf("failed to insert log: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating logs: %w", err)
	}
	return logs, nil
}

func scanJob(row pgx.Row) (*Job, error) {
	var (
		job                     Job
		progress, learn, visits []byte
	)
	err := row.Scan(&job.ID, &job.Query, &job.Breadth, &job.Depth, &job.Status,
		&progress, &job.Report, &learn, &visits, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeJobJSON(&job, progress, learn, visits); err != nil {
		return nil, err
	}
	return &job, nil
}

func decodeJobJSON(job *Job, progress, learnings, visitedURLs []byte) error {
	if len(progress) > 0 {
		job.Progress = json.RawMessage(progress)
	}
	if len(learnings) > 0 {
		if err := json.Unmarshal(learnings, &job.Learnings); err != nil {
			return fmt.Errorf("failed to unmarshal learnings: %w", err)
		}
	}
	if len(visitedURLs) > 0 {
		if err := json.Unmarshal(visitedURLs, &job.VisitedURLs); err != nil {
			return fmt.Errorf("failed to unmarshal visited urls: %w", err)
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
