package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"transmute/internal/batch"
)

// Run summarizes one batch invocation.
type Run struct {
	ID           string       `json:"id"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	TargetFormat string       `json:"target_format"`
	OutputDir    string       `json:"output_dir,omitempty"`
	Workers      int          `json:"workers"`
	Total        int          `json:"total"`
	Completed    int          `json:"completed"`
	Failed       int          `json:"failed"`
	Tasks        []TaskRecord `json:"tasks,omitempty"`
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// TaskRecord is the persisted outcome of one task.
type TaskRecord struct {
	TaskID       string        `json:"task_id"`
	SourcePath   string        `json:"source_path"`
	TargetPath   string        `json:"target_path"`
	SourceFormat string        `json:"source_format"`
	TargetFormat string        `json:"target_format"`
	Status       batch.Status  `json:"status"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// NewRun builds a run summary from the terminal tasks a scheduler returned.
func NewRun(id string, started, finished time.Time, target, outputDir string, workers int, tasks []batch.Task) Run {
	run := Run{
		ID:           id,
		StartedAt:    started.UTC(),
		FinishedAt:   finished.UTC(),
		TargetFormat: target,
		OutputDir:    outputDir,
		Workers:      workers,
		Total:        len(tasks),
		Tasks:        make([]TaskRecord, 0, len(tasks)),
	}
	for _, task := range tasks {
		pair := task.Pair()
		switch task.Status {
		case batch.StatusCompleted:
			run.Completed++
		case batch.StatusFailed:
			run.Failed++
		}
		run.Tasks = append(run.Tasks, TaskRecord{
			TaskID:       task.ID,
			SourcePath:   task.SourcePath,
			TargetPath:   task.TargetPath,
			SourceFormat: string(pair.Source),
			TargetFormat: string(pair.Target),
			Status:       task.Status,
			Error:        task.Error,
			Duration:     task.Duration(),
		})
	}
	return run
}

// RecordBatch stores run and its task rows in one transaction.
func (s *Store) RecordBatch(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin record tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx,
			`INSERT INTO runs (id, started_at, finished_at, target_format, output_dir, workers, total, completed, failed)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.StartedAt.UTC().Format(time.RFC3339Nano),
			run.FinishedAt.UTC().Format(time.RFC3339Nano),
			run.TargetFormat,
			run.OutputDir,
			run.Workers,
			run.Total,
			run.Completed,
			run.Failed,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO run_tasks (run_id, position, task_id, source_path, target_path, source_format, target_format, status, error, duration_ms)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare task insert: %w", err)
		}
		defer stmt.Close()
		for i, task := range run.Tasks {
			if _, err := stmt.ExecContext(ctx,
				run.ID, i, task.TaskID, task.SourcePath, task.TargetPath,
				task.SourceFormat, task.TargetFormat, string(task.Status), task.Error,
				task.Duration.Milliseconds(),
			); err != nil {
				return fmt.Errorf("insert task %s: %w", task.TaskID, err)
			}
		}
		return tx.Commit()
	})
}

// Recent returns up to limit runs, newest first, without task rows.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, target_format, output_dir, workers, total, completed, failed
         FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Run loads one run with its task rows in submission order.
func (s *Store) Run(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, target_format, output_dir, workers, total, completed, failed
         FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, source_path, target_path, source_format, target_format, status, error, duration_ms
         FROM run_tasks WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query run tasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rec        TaskRecord
			status     string
			durationMS int64
		)
		if err := rows.Scan(&rec.TaskID, &rec.SourcePath, &rec.TargetPath, &rec.SourceFormat,
			&rec.TargetFormat, &status, &rec.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("scan run task: %w", err)
		}
		rec.Status = batch.Status(status)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		run.Tasks = append(run.Tasks, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run               Run
		started, finished string
	)
	if err := row.Scan(&run.ID, &started, &finished, &run.TargetFormat, &run.OutputDir,
		&run.Workers, &run.Total, &run.Completed, &run.Failed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scan run: %w", err)
	}
	var err error
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return run, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return run, fmt.Errorf("parse finished_at: %w", err)
	}
	return run, nil
}
