package batch

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"transmute/internal/converter"
	"transmute/internal/formats"
	"transmute/internal/services"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status is completed or failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one file conversion within a batch.
type Task struct {
	ID           string            `json:"id"`
	SourcePath   string            `json:"source_path"`
	TargetPath   string            `json:"target_path"`
	SourceFormat formats.Format    `json:"source_format,omitempty"`
	TargetFormat formats.Format    `json:"target_format,omitempty"`
	Options      converter.Options `json:"options,omitempty"`
	Status       Status            `json:"status"`
	StartedAt    time.Time         `json:"started_at,omitzero"`
	FinishedAt   time.Time         `json:"finished_at,omitzero"`
	Error        string            `json:"error,omitempty"`
}

// Duration returns how long the task ran, or zero if it has not finished.
func (t Task) Duration() time.Duration {
	if t.StartedAt.IsZero() || t.FinishedAt.IsZero() {
		return 0
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

// Pair returns the task's format pair, inferring missing formats from the
// file extensions.
func (t Task) Pair() formats.Pair {
	source := formats.Normalize(string(t.SourceFormat))
	if source == "" {
		source = formats.FromPath(t.SourcePath)
	}
	target := formats.Normalize(string(t.TargetFormat))
	if target == "" {
		target = formats.FromPath(t.TargetPath)
	}
	return formats.Pair{Source: source, Target: target}
}

// Validate checks that the task names its files and that both formats are
// known or inferable.
func (t Task) Validate() error {
	pair := t.Pair()
	err := validation.ValidateStruct(&t,
		validation.Field(&t.SourcePath, validation.Required.Error("source path is required")),
		validation.Field(&t.TargetPath, validation.Required.Error("target path is required")),
		validation.Field(&t.SourceFormat, validation.By(func(any) error {
			if pair.Source == "" {
				return errors.New("cannot infer source format")
			}
			return nil
		})),
		validation.Field(&t.TargetFormat, validation.By(func(any) error {
			if pair.Target == "" {
				return errors.New("cannot infer target format")
			}
			return nil
		})),
	)
	if err != nil {
		return services.Wrap(services.ErrValidation, "batch", "validate task", t.SourcePath, err)
	}
	return nil
}
