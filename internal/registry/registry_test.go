package registry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"transmute/internal/converter"
	"transmute/internal/formats"
	"transmute/internal/logging"
	"transmute/internal/services"
)

type stubConverter struct {
	pair formats.Pair
	tag  string
}

func (s stubConverter) Source() formats.Format { return s.pair.Source }
func (s stubConverter) Target() formats.Format { return s.pair.Target }
func (s stubConverter) Convert(context.Context, string, string, converter.Options) converter.Result {
	return converter.Succeeded()
}

func stubFactory(tag string) converter.Factory {
	return func(pair formats.Pair) converter.Converter { return stubConverter{pair: pair, tag: tag} }
}

func newTestRegistry(t *testing.T, pairs ...string) *Registry {
	t.Helper()
	r := New(nil, logging.NewNop())
	for _, p := range pairs {
		var s, d string
		if _, err := fmt.Sscanf(p, "%s %s", &s, &d); err != nil {
			t.Fatalf("bad pair %q: %v", p, err)
		}
		r.Register(formats.Format(s), formats.Format(d), stubFactory(p))
	}
	r.Rebuild()
	return r
}

func TestConverterForEveryRegisteredPair(t *testing.T) {
	pairs := []string{"csv json", "json xlsx", "xlsx csv", "md html"}
	r := newTestRegistry(t, pairs...)
	for _, p := range pairs {
		var s, d string
		_, _ = fmt.Sscanf(p, "%s %s", &s, &d)
		c, ok := r.Converter(formats.Format(s), formats.Format(d))
		if !ok {
			t.Fatalf("missing converter for %s", p)
		}
		if c.Source() != formats.Format(s) || c.Target() != formats.Format(d) {
			t.Fatalf("converter for %s reports %s->%s", p, c.Source(), c.Target())
		}
	}
	if _, ok := r.Converter("json", "csv"); ok {
		t.Fatal("unregistered pair must not resolve")
	}
	if _, ok := r.Converter("CSV", ".Json"); !ok {
		t.Fatal("lookup should normalize formats")
	}
}

func TestRegisterLastWinsAndDoesNotRebuild(t *testing.T) {
	r := New(nil, nil)
	r.Register("csv", "json", stubFactory("first"))
	if _, ok := r.FindPath("csv", "json"); ok {
		t.Fatal("graph should not change until Rebuild")
	}
	r.Register("csv", "json", stubFactory("second"))
	r.Rebuild()

	c, ok := r.Converter("csv", "json")
	if !ok || c.(stubConverter).tag != "second" {
		t.Fatalf("expected last registration to win, got %+v", c)
	}
	if r.Generation() != 1 {
		t.Fatalf("generation = %d, want 1", r.Generation())
	}
}

func TestFindPathCycleScenario(t *testing.T) {
	r := newTestRegistry(t, "csv json", "json xlsx", "xlsx csv")

	tests := []struct {
		source, target formats.Format
		want           string
		ok             bool
	}{
		{"csv", "csv", "csv", true},
		{"csv", "json", "csv -> json", true},
		{"csv", "xlsx", "csv -> json -> xlsx", true},
		{"xlsx", "json", "xlsx -> csv -> json", true},
		{"JSON", "csv", "json -> xlsx -> csv", true},
		{"json", "pdf", "", false},
		{"pdf", "pdf", "pdf", true},
	}
	for _, tt := range tests {
		path, ok := r.FindPath(tt.source, tt.target)
		if ok != tt.ok {
			t.Fatalf("FindPath(%s,%s) ok=%v, want %v", tt.source, tt.target, ok, tt.ok)
		}
		if ok && path.String() != tt.want {
			t.Fatalf("FindPath(%s,%s) = %s, want %s", tt.source, tt.target, path, tt.want)
		}
	}
	if !r.Supports("xlsx", "json") || r.Supports("json", "pdf") {
		t.Fatal("Supports disagrees with FindPath")
	}
}

func TestFindPathTieBreakIsLexicographic(t *testing.T) {
	r := newTestRegistry(t, "a c", "a b", "b z", "c z")
	for i := 0; i < 20; i++ {
		path, ok := r.FindPath("a", "z")
		if !ok || path.String() != "a -> b -> z" {
			t.Fatalf("path = %v ok=%v", path, ok)
		}
	}
}

func bruteForceShortest(edges map[formats.Format][]formats.Format, source, target formats.Format) int {
	if source == target {
		return 0
	}
	best := -1
	visited := map[formats.Format]bool{source: true}
	var walk func(f formats.Format, depth int)
	walk = func(f formats.Format, depth int) {
		for _, next := range edges[f] {
			if next == target {
				if best < 0 || depth+1 < best {
					best = depth + 1
				}
				continue
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			walk(next, depth+1)
			visited[next] = false
		}
	}
	walk(source, 0)
	return best
}

func TestFindPathMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	names := []formats.Format{"a", "b", "c", "d", "e", "f"}

	for round := 0; round < 200; round++ {
		n := 2 + rng.IntN(len(names)-1)
		nodes := names[:n]
		r := New(nil, nil)
		edges := map[formats.Format][]formats.Format{}
		for _, s := range nodes {
			for _, d := range nodes {
				if s != d && rng.Float64() < 0.35 {
					r.Register(s, d, stubFactory(""))
					edges[s] = append(edges[s], d)
				}
			}
		}
		r.Rebuild()

		for _, s := range nodes {
			for _, d := range nodes {
				want := bruteForceShortest(edges, s, d)
				path, ok := r.FindPath(s, d)
				if want < 0 {
					if ok {
						t.Fatalf("round %d: found %s but %s is unreachable from %s", round, path, d, s)
					}
					continue
				}
				if !ok {
					t.Fatalf("round %d: no path %s->%s, brute force found %d hops", round, s, d, want)
				}
				if path.Hops() != want {
					t.Fatalf("round %d: %s has %d hops, want %d", round, path, path.Hops(), want)
				}
				if path[0] != s || path[len(path)-1] != d {
					t.Fatalf("round %d: path %s has wrong ends", round, path)
				}
				for _, step := range path.Pairs() {
					if !slices.Contains(edges[step.Source], step.Target) {
						t.Fatalf("round %d: path %s uses missing edge %s", round, path, step)
					}
				}
			}
		}
	}
}

func TestCreateChain(t *testing.T) {
	r := newTestRegistry(t, "csv json", "json xlsx")
	steps, err := r.CreateChain(formats.Path{"csv", "json", "xlsx"})
	if err != nil {
		t.Fatalf("CreateChain: %v", err)
	}
	if len(steps) != 2 || steps[0].Target() != "json" || steps[1].Source() != "json" {
		t.Fatalf("unexpected steps: %+v", steps)
	}

	if _, err := r.CreateChain(formats.Path{"csv"}); !errors.Is(err, services.ErrInvalidChain) {
		t.Fatalf("expected ErrInvalidChain for single-format path, got %v", err)
	}
	if _, err := r.CreateChain(formats.Path{"csv", "pdf"}); !errors.Is(err, services.ErrInconsistentGraph) {
		t.Fatalf("expected ErrInconsistentGraph, got %v", err)
	}
}

func TestCreateChainNilFactoryIsInconsistent(t *testing.T) {
	r := New(nil, nil)
	r.Register("a", "b", func(formats.Pair) converter.Converter { return nil })
	r.Rebuild()
	path, ok := r.FindPath("a", "b")
	if !ok {
		t.Fatal("edge should exist in graph")
	}
	if _, err := r.CreateChain(path); !errors.Is(err, services.ErrInconsistentGraph) {
		t.Fatalf("expected ErrInconsistentGraph, got %v", err)
	}
}

func TestDiscoverSkipsBrokenProviders(t *testing.T) {
	catalog := CatalogFunc(func() []converter.Descriptor {
		return []converter.Descriptor{
			{
				Name:    "data",
				Sources: []string{"csv", "json"},
				Targets: []string{"json", "yaml"},
				Load: func(context.Context) (converter.Factory, error) {
					return stubFactory("data"), nil
				},
			},
			{
				Name:    "broken",
				Sources: []string{"pdf"},
				Targets: []string{"txt"},
				Load: func(context.Context) (converter.Factory, error) {
					return nil, errors.New("binary not found")
				},
			},
			{
				Name:    "panicky",
				Sources: []string{"doc"},
				Targets: []string{"txt"},
				Load: func(context.Context) (converter.Factory, error) {
					panic("init exploded")
				},
			},
			{Name: "noloader", Sources: []string{"a"}, Targets: []string{"b"}},
		}
	})

	r := New(catalog, logging.NewNop())
	report := r.Discover(context.Background())

	if !slices.Equal(report.Loaded, []string{"data"}) {
		t.Fatalf("loaded = %v", report.Loaded)
	}
	for _, name := range []string{"broken", "panicky", "noloader"} {
		if _, ok := report.Skipped[name]; !ok {
			t.Fatalf("%s should be skipped: %v", name, report.Skipped)
		}
	}
	if report.Pairs != 3 {
		t.Fatalf("pairs = %d, want 3 (csv->json, csv->yaml, json->yaml)", report.Pairs)
	}
	if _, ok := r.Converter("json", "json"); ok {
		t.Fatal("identity pairs must not be registered")
	}
	if path, ok := r.FindPath("csv", "yaml"); !ok || path.Hops() != 1 {
		t.Fatalf("expected direct csv->yaml, got %v", path)
	}
	if len(r.Descriptors()) != 1 {
		t.Fatalf("descriptors = %d, want 1", len(r.Descriptors()))
	}
}

func TestReinitializeClearsState(t *testing.T) {
	calls := 0
	catalog := CatalogFunc(func() []converter.Descriptor {
		calls++
		return []converter.Descriptor{{
			Name:    "md",
			Sources: []string{"md"},
			Targets: []string{"html"},
			Load:    func(context.Context) (converter.Factory, error) { return stubFactory("md"), nil },
		}}
	})
	r := New(catalog, nil)
	r.Discover(context.Background())
	r.Register("csv", "json", stubFactory("manual"))
	r.Rebuild()
	before := r.Generation()

	report := r.Reinitialize(context.Background())
	if calls != 2 || report.Pairs != 1 {
		t.Fatalf("calls=%d pairs=%d", calls, report.Pairs)
	}
	if _, ok := r.Converter("csv", "json"); ok {
		t.Fatal("manual registration should be cleared")
	}
	if r.Generation() <= before {
		t.Fatalf("generation did not advance: %d <= %d", r.Generation(), before)
	}
}

func TestRepeatedDiscoverKeepsDescriptorsUnique(t *testing.T) {
	catalog := CatalogFunc(func() []converter.Descriptor {
		return []converter.Descriptor{{
			Name:    "md",
			Sources: []string{"md"},
			Targets: []string{"html"},
			Load:    func(context.Context) (converter.Factory, error) { return stubFactory("md"), nil },
		}}
	})
	r := New(catalog, nil)
	r.Discover(context.Background())
	r.Discover(context.Background())
	if got := r.Descriptors(); len(got) != 1 || got[0].Name != "md" {
		t.Fatalf("descriptors after second discovery = %+v", got)
	}
}

func TestIntrospectionViews(t *testing.T) {
	r := newTestRegistry(t, "csv json", "json yaml", "md html", "png jpg")

	if got := r.SupportedSources(); !slices.Equal(got, []formats.Format{"csv", "json", "md", "png"}) {
		t.Fatalf("sources = %v", got)
	}
	if got := r.SupportedTargets("json"); !slices.Equal(got, []formats.Format{"yaml"}) {
		t.Fatalf("targets(json) = %v", got)
	}
	if got := r.SupportedTargets(""); !slices.Equal(got, []formats.Format{"html", "jpg", "json", "yaml"}) {
		t.Fatalf("targets(all) = %v", got)
	}

	matrix := r.Matrix()
	if info := matrix["json"]; !slices.Equal(info.CanConvertFrom, []formats.Format{"csv"}) || !slices.Equal(info.CanConvertTo, []formats.Format{"yaml"}) {
		t.Fatalf("matrix[json] = %+v", info)
	}

	details := r.FormatDetails()
	var categories []formats.Category
	for _, d := range details {
		categories = append(categories, d.Category)
	}
	if !slices.Equal(categories, []formats.Category{formats.CategoryDocument, formats.CategoryImage, formats.CategoryData}) {
		t.Fatalf("categories = %v", categories)
	}

	caps := r.Capabilities()
	if len(caps) != 4 || caps[0].Pair.String() != "csv->json" {
		t.Fatalf("capabilities = %+v", caps)
	}

	g := r.Graph()
	if !g.HasEdge("CSV", "json") || g.HasEdge("json", "csv") {
		t.Fatal("HasEdge wrong")
	}
	if !slices.Equal(g.Neighbors("csv"), []formats.Format{"json"}) {
		t.Fatalf("neighbors = %v", g.Neighbors("csv"))
	}
}
