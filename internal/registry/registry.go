package registry

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"transmute/internal/converter"
	"transmute/internal/formats"
	"transmute/internal/logging"
	"transmute/internal/services"
)

// Catalog enumerates converter providers available for discovery.
type Catalog interface {
	Descriptors() []converter.Descriptor
}

// CatalogFunc adapts a function to Catalog.
type CatalogFunc func() []converter.Descriptor

// Descriptors implements Catalog.
func (f CatalogFunc) Descriptors() []converter.Descriptor { return f() }

// Capability describes one registered (source, target) pair.
type Capability struct {
	Pair     formats.Pair `json:"pair"`
	Provider string       `json:"provider"`
}

type capability struct {
	provider string
	factory  converter.Factory
}

// DiscoveryReport summarizes one Discover run.
type DiscoveryReport struct {
	Loaded  []string          `json:"loaded"`
	Skipped map[string]string `json:"skipped,omitempty"`
	Pairs   int               `json:"pairs"`
}

// Registry maps format pairs to converter factories. It is safe for
// concurrent use; Reinitialize must not overlap a batch that relies on the
// previous generation.
type Registry struct {
	catalog Catalog
	logger  *slog.Logger

	reinit sync.Mutex

	mu          sync.RWMutex
	caps        map[formats.Pair]capability
	descriptors []converter.Descriptor

	graph      atomic.Pointer[Graph]
	generation atomic.Uint64
}

// New constructs an empty registry. catalog may be nil when capabilities are
// registered by hand.
func New(catalog Catalog, logger *slog.Logger) *Registry {
	r := &Registry{
		catalog: catalog,
		logger:  logging.NewComponentLogger(logger, "registry"),
		caps:    make(map[formats.Pair]capability),
	}
	r.graph.Store(buildGraph(nil, 0))
	return r
}

// Register records factory for source->target, replacing any previous
// factory for the pair. The graph is not rebuilt; call Rebuild afterwards.
func (r *Registry) Register(source, target formats.Format, factory converter.Factory) {
	r.register(formats.NewPair(string(source), string(target)), "", factory)
}

func (r *Registry) register(pair formats.Pair, provider string, factory converter.Factory) {
	if pair.Source == "" || pair.Target == "" || factory == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.caps[pair]; ok {
		r.logger.Debug("capability replaced",
			logging.String(logging.FieldPair, pair.String()),
			logging.String("previous_provider", prev.provider),
			logging.String("provider", provider),
		)
	}
	r.caps[pair] = capability{provider: provider, factory: factory}
}

// Rebuild publishes a fresh graph snapshot from the current capabilities.
func (r *Registry) Rebuild() *Graph {
	r.mu.RLock()
	pairs := make([]formats.Pair, 0, len(r.caps))
	for pair := range r.caps {
		pairs = append(pairs, pair)
	}
	r.mu.RUnlock()

	g := buildGraph(pairs, r.generation.Add(1))
	r.graph.Store(g)
	r.logger.Debug("conversion graph rebuilt",
		logging.Int("formats", len(g.Formats())),
		logging.Int("edges", g.Edges()),
		logging.Int64("generation", int64(g.Generation())),
	)
	return g
}

// Graph returns the current snapshot.
func (r *Registry) Graph() *Graph {
	return r.graph.Load()
}

// Generation returns the number of graph rebuilds so far.
func (r *Registry) Generation() uint64 {
	return r.generation.Load()
}

// Discover loads every catalog descriptor, registers the pairs it covers, and
// rebuilds the graph. Providers that fail to load are skipped.
func (r *Registry) Discover(ctx context.Context) DiscoveryReport {
	report := DiscoveryReport{Skipped: map[string]string{}}
	if r.catalog == nil {
		r.Rebuild()
		return report
	}

	// Descriptors reflect the latest discovery pass only.
	r.mu.Lock()
	r.descriptors = nil
	r.mu.Unlock()

	for _, desc := range r.catalog.Descriptors() {
		if err := ctx.Err(); err != nil {
			report.Skipped[desc.Name] = err.Error()
			continue
		}
		factory, err := loadDescriptor(ctx, desc)
		if err != nil {
			report.Skipped[desc.Name] = err.Error()
			logging.WarnWithContext(r.logger, "converter provider skipped", "discovery_skip",
				logging.String("provider", desc.Name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run transmute doctor to check external tools"),
			)
			continue
		}

		r.mu.Lock()
		r.descriptors = append(r.descriptors, desc)
		r.mu.Unlock()

		pairs := desc.Pairs()
		for _, pair := range pairs {
			r.register(pair, desc.Name, factory)
		}
		report.Loaded = append(report.Loaded, desc.Name)
		r.logger.Debug("converter provider loaded",
			logging.String("provider", desc.Name),
			logging.Int("pairs", len(pairs)),
		)
	}

	r.Rebuild()
	r.mu.RLock()
	report.Pairs = len(r.caps)
	r.mu.RUnlock()
	r.logger.Info("converter discovery complete",
		logging.Int("loaded", len(report.Loaded)),
		logging.Int("skipped", len(report.Skipped)),
		logging.Int("pairs", report.Pairs),
	)
	return report
}

func loadDescriptor(ctx context.Context, desc converter.Descriptor) (factory converter.Factory, err error) {
	if strings.TrimSpace(desc.Name) == "" {
		return nil, fmt.Errorf("descriptor has no name")
	}
	if desc.Load == nil {
		return nil, fmt.Errorf("descriptor %s has no loader", desc.Name)
	}
	defer func() {
		if rec := recover(); rec != nil {
			factory = nil
			err = fmt.Errorf("load panicked: %v\n%s", rec, debug.Stack())
		}
	}()
	factory, err = desc.Load(ctx)
	if err == nil && factory == nil {
		err = fmt.Errorf("descriptor %s returned no factory", desc.Name)
	}
	return factory, err
}

// Reinitialize clears all capabilities and reruns discovery.
func (r *Registry) Reinitialize(ctx context.Context) DiscoveryReport {
	r.reinit.Lock()
	defer r.reinit.Unlock()

	r.mu.Lock()
	r.caps = make(map[formats.Pair]capability)
	r.descriptors = nil
	r.mu.Unlock()
	r.logger.Info("registry reinitializing")
	return r.Discover(ctx)
}

// Converter returns a direct converter instance for source->target.
func (r *Registry) Converter(source, target formats.Format) (converter.Converter, bool) {
	pair := formats.NewPair(string(source), string(target))
	r.mu.RLock()
	c, ok := r.caps[pair]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	instance := c.factory(pair)
	if instance == nil {
		return nil, false
	}
	return instance, true
}

// SupportedSources returns every format with at least one outgoing capability.
func (r *Registry) SupportedSources() []formats.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedUnique(r.caps, func(p formats.Pair) (formats.Format, bool) { return p.Source, true })
}

// SupportedTargets returns the direct targets of source, or every target
// format when source is empty.
func (r *Registry) SupportedTargets(source formats.Format) []formats.Format {
	source = formats.Normalize(string(source))
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedUnique(r.caps, func(p formats.Pair) (formats.Format, bool) {
		return p.Target, source == "" || p.Source == source
	})
}

func sortedUnique(caps map[formats.Pair]capability, pick func(formats.Pair) (formats.Format, bool)) []formats.Format {
	seen := make(map[formats.Format]struct{})
	for pair := range caps {
		if f, ok := pick(pair); ok {
			seen[f] = struct{}{}
		}
	}
	out := make([]formats.Format, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Capabilities lists registered pairs with their providers, sorted by pair.
func (r *Registry) Capabilities() []Capability {
	r.mu.RLock()
	out := make([]Capability, 0, len(r.caps))
	for pair, c := range r.caps {
		out = append(out, Capability{Pair: pair, Provider: c.provider})
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b Capability) int {
		return strings.Compare(a.Pair.String(), b.Pair.String())
	})
	return out
}

// Descriptors returns the providers loaded by the last discovery.
func (r *Registry) Descriptors() []converter.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.descriptors)
}

// Supports reports whether source can reach target by identity, a direct
// capability, or a chain.
func (r *Registry) Supports(source, target formats.Format) bool {
	_, ok := r.FindPath(source, target)
	return ok
}

// FindPath returns the shortest conversion path over the current graph.
func (r *Registry) FindPath(source, target formats.Format) (formats.Path, bool) {
	return r.Graph().ShortestPath(source, target)
}

// CreateChain instantiates one direct converter per step of path. A step
// without a registered converter means the graph and the capability table
// disagree, which is reported as ErrInconsistentGraph.
func (r *Registry) CreateChain(path formats.Path) ([]converter.Converter, error) {
	if len(path) < 2 {
		return nil, services.Wrap(services.ErrInvalidChain, "registry", "create chain",
			fmt.Sprintf("path %q has no steps", path.String()), nil)
	}
	steps := make([]converter.Converter, 0, len(path)-1)
	for i, pair := range path.Pairs() {
		c, ok := r.Converter(pair.Source, pair.Target)
		if !ok {
			err := services.Wrap(services.ErrInconsistentGraph, "registry", "create chain",
				fmt.Sprintf("no converter for step %d (%s) of %s", i, pair, path), nil)
			logging.ErrorWithContext(r.logger, "conversion graph references a missing converter", "inconsistent_graph",
				logging.Alert("inconsistent_graph"),
				logging.String(logging.FieldPair, pair.String()),
				logging.Int(logging.FieldStep, i),
				logging.String("path", path.String()),
				logging.Int64("generation", int64(r.Generation())),
				logging.String(logging.FieldErrorHint, "rebuild the registry after registering converters"),
			)
			return nil, err
		}
		steps = append(steps, c)
	}
	return steps, nil
}
