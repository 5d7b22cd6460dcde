package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"transmute/internal/batch"
	"transmute/internal/chain"
	"transmute/internal/converter"
	"transmute/internal/formats"
	"transmute/internal/logging"
	"transmute/internal/metrics"
	"transmute/internal/registry"
	"transmute/internal/services"
)

// Kind classifies how a request is satisfied.
type Kind string

const (
	KindIdentity Kind = "identity"
	KindDirect   Kind = "direct"
	KindChain    Kind = "chain"
)

// Resolution is the plan for one (source, target) request.
type Resolution struct {
	Kind      Kind
	Path      formats.Path
	Converter converter.Converter
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics sets the recorder that receives per-step observations.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = rec }
}

// WithWorkDir sets where chained conversions keep intermediates.
func WithWorkDir(dir string) Option {
	return func(e *Engine) { e.workDir = dir }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine resolves and executes conversions.
type Engine struct {
	registry *registry.Registry
	metrics  *metrics.Recorder
	workDir  string
	logger   *slog.Logger
}

var _ batch.Runner = (*Engine)(nil)

// New constructs an engine over reg.
func New(reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{registry: reg}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.NewRecorder()
	}
	e.logger = logging.NewComponentLogger(e.logger, "engine")
	return e
}

// Registry exposes the administrative registry surface.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Metrics exposes the recorder.
func (e *Engine) Metrics() *metrics.Recorder { return e.metrics }

// Resolve finds the shortest path from source to target and builds the
// converter for it. An unreachable target returns an error matching
// services.ErrNotSupported.
func (e *Engine) Resolve(source, target formats.Format) (Resolution, error) {
	pair := formats.NewPair(string(source), string(target))
	path, ok := e.registry.FindPath(pair.Source, pair.Target)
	if !ok {
		return Resolution{}, services.Wrap(services.ErrNotSupported, "engine", "resolve", pair.String(), nil)
	}

	switch len(path) {
	case 1:
		return Resolution{
			Kind:      KindIdentity,
			Path:      path,
			Converter: e.observed(converter.Identity(pair.Source)),
		}, nil
	case 2:
		steps, err := e.registry.CreateChain(path)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Kind: KindDirect, Path: path, Converter: e.observed(steps[0])}, nil
	}

	steps, err := e.registry.CreateChain(path)
	if err != nil {
		return Resolution{}, err
	}
	exec, err := chain.New(steps, pair.Source, pair.Target,
		chain.WithWorkDir(e.workDir),
		chain.WithObserver(e.observeStep),
		chain.WithLogger(e.logger),
	)
	if err != nil {
		return Resolution{}, fmt.Errorf("build chain for %s: %w", path, err)
	}
	return Resolution{Kind: KindChain, Path: path, Converter: exec}, nil
}

// Convert resolves and runs a single conversion. Empty formats are inferred
// from the file extensions.
func (e *Engine) Convert(ctx context.Context, sourcePath, targetPath string, sourceFormat, targetFormat formats.Format, opts converter.Options) converter.Result {
	task := batch.Task{
		SourcePath:   sourcePath,
		TargetPath:   targetPath,
		SourceFormat: sourceFormat,
		TargetFormat: targetFormat,
	}
	pair := task.Pair()
	if pair.Source == "" || pair.Target == "" {
		return converter.FromError(services.Wrap(services.ErrValidation, "engine", "convert",
			fmt.Sprintf("cannot infer formats for %s -> %s", sourcePath, targetPath), nil))
	}

	logger := logging.WithContext(ctx, e.logger).With(logging.String(logging.FieldPair, pair.String()))
	res, err := e.Resolve(pair.Source, pair.Target)
	if err != nil {
		logger.Debug("conversion not resolved", logging.Error(err), logging.String(logging.FieldErrorKind, services.Kind(err)))
		return converter.FromError(err)
	}

	start := time.Now()
	result := res.Converter.Convert(ctx, sourcePath, targetPath, opts)
	attrs := []logging.Attr{
		logging.String("kind", string(res.Kind)),
		logging.String("path", res.Path.String()),
		logging.Duration("elapsed", time.Since(start)),
	}
	if result.OK {
		logger.Debug("conversion complete", logging.Args(attrs...)...)
	} else {
		attrs = append(attrs, logging.String("reason", result.Message()))
		logger.Debug("conversion failed", logging.Args(attrs...)...)
	}
	return result
}

// Run implements batch.Runner.
func (e *Engine) Run(ctx context.Context, task batch.Task) converter.Result {
	return e.Convert(ctx, task.SourcePath, task.TargetPath, task.SourceFormat, task.TargetFormat, task.Options)
}

// observeStep is the single place conversion metrics are recorded.
func (e *Engine) observeStep(pair formats.Pair, elapsed time.Duration, ok bool) {
	e.metrics.Observe(pair, elapsed, ok)
}

type observedConverter struct {
	inner   converter.Converter
	observe chain.StepObserver
}

func (e *Engine) observed(c converter.Converter) converter.Converter {
	return &observedConverter{inner: c, observe: e.observeStep}
}

func (o *observedConverter) Source() formats.Format { return o.inner.Source() }
func (o *observedConverter) Target() formats.Format { return o.inner.Target() }

func (o *observedConverter) Convert(ctx context.Context, sourcePath, targetPath string, opts converter.Options) converter.Result {
	pair := formats.Pair{Source: o.inner.Source(), Target: o.inner.Target()}
	start := time.Now()
	res := converter.SafeConvert(ctx, o.inner, sourcePath, targetPath, converter.OptionsFor(opts, pair))
	o.observe(pair, time.Since(start), res.OK)
	return res
}
