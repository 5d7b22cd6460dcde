package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"transmute/internal/converter"
	"transmute/internal/fileutil"
	"transmute/internal/formats"
	"transmute/internal/logging"
	"transmute/internal/services"
	"transmute/internal/staging"
)

// StepObserver is told about every step attempt.
type StepObserver func(pair formats.Pair, elapsed time.Duration, ok bool)

// StepError reports the step at which a chain stopped.
type StepError struct {
	Index   int
	Pair    formats.Pair
	Message string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %s", e.Index, e.Pair, e.Message)
}

// Unwrap ties step errors to services.ErrStepFailure.
func (e *StepError) Unwrap() error { return services.ErrStepFailure }

// Option configures an Executor.
type Option func(*Executor)

// WithWorkDir sets the parent directory for intermediate artifacts. Empty
// means the system temp dir.
func WithWorkDir(dir string) Option {
	return func(e *Executor) { e.workDir = dir }
}

// WithObserver registers a per-step hook.
func WithObserver(obs StepObserver) Option {
	return func(e *Executor) { e.observer = obs }
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// Executor runs an ordered list of converters as one conversion.
type Executor struct {
	steps    []converter.Converter
	source   formats.Format
	target   formats.Format
	workDir  string
	observer StepObserver
	logger   *slog.Logger
}

// New validates that steps form a connected chain from source to target.
func New(steps []converter.Converter, source, target formats.Format, opts ...Option) (*Executor, error) {
	source = formats.Normalize(string(source))
	target = formats.Normalize(string(target))
	invalid := func(msg string) error {
		return services.Wrap(services.ErrInvalidChain, "chain", "validate", msg, nil)
	}
	if len(steps) == 0 {
		return nil, invalid("chain has no steps")
	}
	for i, step := range steps {
		if step == nil {
			return nil, invalid(fmt.Sprintf("step %d is nil", i))
		}
	}
	if first := steps[0].Source(); first != source {
		return nil, invalid(fmt.Sprintf("first step reads %s, chain source is %s", first, source))
	}
	if last := steps[len(steps)-1].Target(); last != target {
		return nil, invalid(fmt.Sprintf("last step writes %s, chain target is %s", last, target))
	}
	for i := 0; i < len(steps)-1; i++ {
		if steps[i].Target() != steps[i+1].Source() {
			return nil, invalid(fmt.Sprintf("step %d writes %s but step %d reads %s",
				i, steps[i].Target(), i+1, steps[i+1].Source()))
		}
	}

	e := &Executor{
		steps:  append([]converter.Converter(nil), steps...),
		source: source,
		target: target,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "chain")
	return e, nil
}

// Source implements converter.Converter.
func (e *Executor) Source() formats.Format { return e.source }

// Target implements converter.Converter.
func (e *Executor) Target() formats.Format { return e.target }

// Len returns the number of steps.
func (e *Executor) Len() int { return len(e.steps) }

// Path returns the formats visited by the chain.
func (e *Executor) Path() formats.Path {
	path := formats.Path{e.source}
	for _, step := range e.steps {
		path = append(path, step.Target())
	}
	return path
}

// Convert implements converter.Converter.
func (e *Executor) Convert(ctx context.Context, sourcePath, targetPath string, opts converter.Options) converter.Result {
	return converter.FromError(e.Run(ctx, sourcePath, targetPath, opts))
}

// Run executes every step in order. A step failure is returned as *StepError.
func (e *Executor) Run(ctx context.Context, sourcePath, targetPath string, opts converter.Options) error {
	if _, err := fileutil.RequireNonEmpty(sourcePath); err != nil {
		return fmt.Errorf("invalid source: %w", err)
	}
	if err := fileutil.EnsureParentDir(targetPath); err != nil {
		return err
	}
	if e.workDir != "" {
		if err := os.MkdirAll(e.workDir, 0o755); err != nil {
			return fmt.Errorf("create work dir: %w", err)
		}
	}
	scratch, err := os.MkdirTemp(e.workDir, staging.ChainDirPrefix+"*")
	if err != nil {
		return fmt.Errorf("create chain scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			e.logger.Warn("chain scratch cleanup failed", logging.String("dir", scratch), logging.Error(err))
		}
	}()

	logger := logging.WithContext(ctx, e.logger)
	current := sourcePath
	for i, step := range e.steps {
		pair := formats.Pair{Source: step.Source(), Target: step.Target()}
		if err := ctx.Err(); err != nil {
			return &StepError{Index: i, Pair: pair, Message: err.Error()}
		}

		output := targetPath
		if i < len(e.steps)-1 {
			output = filepath.Join(scratch, fmt.Sprintf("intermediate_%d.%s", i, pair.Target))
		}

		stepCtx := services.WithPair(services.WithStep(ctx, i), pair.String())
		res := e.runStep(stepCtx, step, current, output, converter.OptionsFor(opts, pair))
		if !res.OK {
			stepErr := &StepError{Index: i, Pair: pair, Message: res.Message()}
			logger.Warn("chain step failed",
				logging.Int(logging.FieldStep, i),
				logging.String(logging.FieldPair, pair.String()),
				logging.String("path", e.Path().String()),
				logging.String("reason", stepErr.Message),
			)
			return stepErr
		}
		logger.Debug("chain step complete",
			logging.Int(logging.FieldStep, i),
			logging.String(logging.FieldPair, pair.String()),
		)
		current = output
	}
	return nil
}

// runStep runs one step and holds it responsible for its own output: a step
// that reports success without leaving a non-empty file fails here, not at
// the step that would have read it.
func (e *Executor) runStep(ctx context.Context, step converter.Converter, input, output string, opts converter.Options) (res converter.Result) {
	pair := formats.Pair{Source: step.Source(), Target: step.Target()}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = converter.Failed("panic: %v\n%s", r, debug.Stack())
		}
		if e.observer != nil {
			e.observer(pair, time.Since(start), res.OK)
		}
	}()
	res = step.Convert(ctx, input, output, opts)
	if res.OK {
		if _, err := fileutil.RequireNonEmpty(output); err != nil {
			res = converter.Failed("%s produced no output: %v", pair, err)
		}
	}
	return res
}

// AsStepError extracts a *StepError from err.
func AsStepError(err error) (*StepError, bool) {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr, true
	}
	return nil, false
}
