package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"transmute/internal/batch"
	"transmute/internal/converter"
	"transmute/internal/formats"
	"transmute/internal/logging"
	"transmute/internal/registry"
	"transmute/internal/services"
)

// tagFactory builds converters that append "|target" to their input.
func tagFactory(pair formats.Pair) converter.Converter {
	return converter.New(pair.Source, pair.Target, func(_ context.Context, in, out string, opts converter.Options) error {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		return os.WriteFile(out, append(data, []byte("|"+opts.String("tag", string(pair.Target)))...), 0o644)
	})
}

func newCycleEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	reg := registry.New(nil, logging.NewNop())
	reg.Register("csv", "json", tagFactory)
	reg.Register("json", "xlsx", tagFactory)
	reg.Register("xlsx", "csv", tagFactory)
	reg.Register("md", "html", func(pair formats.Pair) converter.Converter {
		return converter.New(pair.Source, pair.Target, func(context.Context, string, string, converter.Options) error {
			return errors.New("renderer offline")
		})
	})
	reg.Rebuild()
	workDir := t.TempDir()
	return New(reg, WithWorkDir(workDir), WithLogger(logging.NewNop())), workDir
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveKinds(t *testing.T) {
	eng, _ := newCycleEngine(t)
	tests := []struct {
		source, target formats.Format
		kind           Kind
		path           string
	}{
		{"csv", "csv", KindIdentity, "csv"},
		{"csv", "json", KindDirect, "csv -> json"},
		{"csv", "xlsx", KindChain, "csv -> json -> xlsx"},
		{"xlsx", "json", KindChain, "xlsx -> csv -> json"},
	}
	for _, tt := range tests {
		res, err := eng.Resolve(tt.source, tt.target)
		if err != nil {
			t.Fatalf("Resolve(%s,%s): %v", tt.source, tt.target, err)
		}
		if res.Kind != tt.kind || res.Path.String() != tt.path {
			t.Fatalf("Resolve(%s,%s) = %s %s, want %s %s", tt.source, tt.target, res.Kind, res.Path, tt.kind, tt.path)
		}
		if res.Converter.Source() != tt.source || res.Converter.Target() != tt.target {
			t.Fatalf("converter pair = %s->%s", res.Converter.Source(), res.Converter.Target())
		}
	}

	res, err := eng.Resolve("json", "pdf")
	if !errors.Is(err, services.ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
	if res.Converter != nil || res.Path != nil {
		t.Fatalf("unsupported resolution should be empty: %+v", res)
	}
}

func TestConvertChainRecordsEachStep(t *testing.T) {
	eng, workDir := newCycleEngine(t)
	src := writeFile(t, "data.csv", "rows")
	dst := filepath.Join(t.TempDir(), "data.xlsx")

	res := eng.Convert(context.Background(), src, dst, "", "", converter.Options{"json_to_xlsx": map[string]any{"tag": "sheet"}})
	if !res.OK {
		t.Fatalf("convert failed: %s", res.Err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "rows|json|sheet" {
		t.Fatalf("output = %q", got)
	}

	snap := eng.Metrics().Snapshot()
	if len(snap) != 2 || snap[0].Pair != "csv->json" || snap[1].Pair != "json->xlsx" {
		t.Fatalf("metrics = %+v", snap)
	}
	for _, s := range snap {
		if s.Count != 1 || s.Failures != 0 {
			t.Fatalf("pair %s counted %d/%d", s.Pair, s.Count, s.Failures)
		}
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("chain scratch left behind: %d entries", len(entries))
	}
}

func TestConvertIdentityAndDirect(t *testing.T) {
	eng, _ := newCycleEngine(t)
	src := writeFile(t, "a.csv", "x")

	copyTo := filepath.Join(t.TempDir(), "copy.csv")
	if res := eng.Convert(context.Background(), src, copyTo, "csv", "csv", nil); !res.OK {
		t.Fatalf("identity failed: %s", res.Err)
	}
	if got, _ := os.ReadFile(copyTo); string(got) != "x" {
		t.Fatalf("identity output %q", got)
	}

	direct := filepath.Join(t.TempDir(), "a.json")
	if res := eng.Convert(context.Background(), src, direct, "", "", converter.Options{"tag": "custom"}); !res.OK {
		t.Fatalf("direct failed: %s", res.Err)
	}
	if got, _ := os.ReadFile(direct); string(got) != "x|custom" {
		t.Fatalf("direct output %q", got)
	}

	snap := eng.Metrics().Snapshot()
	if len(snap) != 2 || snap[0].Pair != "csv->csv" || snap[1].Pair != "csv->json" {
		t.Fatalf("metrics = %+v", snap)
	}
}

func TestConvertFailures(t *testing.T) {
	eng, _ := newCycleEngine(t)
	md := writeFile(t, "doc.md", "# hi")

	res := eng.Convert(context.Background(), md, filepath.Join(t.TempDir(), "doc.html"), "", "", nil)
	if res.OK || !strings.Contains(res.Err, "renderer offline") {
		t.Fatalf("expected converter failure, got %+v", res)
	}
	if snap := eng.Metrics().Snapshot(); len(snap) != 1 || snap[0].Failures != 1 || snap[0].SuccessRate != 0 {
		t.Fatalf("failure not recorded: %+v", snap)
	}

	res = eng.Convert(context.Background(), md, filepath.Join(t.TempDir(), "doc.pdf"), "", "", nil)
	if res.OK || !strings.Contains(res.Err, "conversion not supported") {
		t.Fatalf("expected not supported, got %+v", res)
	}

	res = eng.Convert(context.Background(), md, filepath.Join(t.TempDir(), "noext"), "", "", nil)
	if res.OK || !strings.Contains(res.Err, "cannot infer formats") {
		t.Fatalf("expected inference failure, got %+v", res)
	}
}

func TestEngineDrivesBatchScheduler(t *testing.T) {
	eng, _ := newCycleEngine(t)
	outDir := t.TempDir()
	var tasks []batch.Task
	for _, name := range []string{"a", "b", "c"} {
		src := writeFile(t, name+".csv", name)
		tasks = append(tasks, batch.Task{ID: name, SourcePath: src, TargetPath: filepath.Join(outDir, name+".xlsx")})
	}
	tasks = append(tasks, batch.Task{ID: "bad", SourcePath: writeFile(t, "bad.md", "x"), TargetPath: filepath.Join(outDir, "bad.html")})

	done, err := batch.SubmitBatch(context.Background(), eng, tasks, 2, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, task := range done {
		wantOK := task.ID != "bad"
		if (task.Status == batch.StatusCompleted) != wantOK {
			t.Fatalf("task %s status %s (%s)", task.ID, task.Status, task.Error)
		}
	}
	if got, _ := os.ReadFile(filepath.Join(outDir, "b.xlsx")); string(got) != "b|json|xlsx" {
		t.Fatalf("b.xlsx = %q", got)
	}
}

func TestResolveReportsInconsistentGraph(t *testing.T) {
	reg := registry.New(nil, logging.NewNop())
	reg.Register("a", "b", func(formats.Pair) converter.Converter { return nil })
	reg.Rebuild()
	eng := New(reg)
	if _, err := eng.Resolve("a", "b"); !errors.Is(err, services.ErrInconsistentGraph) {
		t.Fatalf("expected ErrInconsistentGraph, got %v", err)
	}
}

func TestStoppedBatchFinishesDispatchedChain(t *testing.T) {
	reg := registry.New(nil, logging.NewNop())
	entered := make(chan struct{})
	reg.Register("csv", "json", func(pair formats.Pair) converter.Converter {
		return converter.New(pair.Source, pair.Target, func(_ context.Context, in, out string, _ converter.Options) error {
			close(entered)
			time.Sleep(150 * time.Millisecond)
			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			return os.WriteFile(out, append(data, "|json"...), 0o644)
		})
	})
	reg.Register("json", "xlsx", tagFactory)
	reg.Rebuild()
	eng := New(reg, WithWorkDir(t.TempDir()), WithLogger(logging.NewNop()))

	outDir := t.TempDir()
	s := batch.NewScheduler(eng, batch.WithWorkers(1), batch.WithPollInterval(5*time.Millisecond),
		batch.WithStopTimeout(5*time.Second), batch.WithLogger(logging.NewNop()))
	if _, err := s.AddAll([]batch.Task{
		{ID: "first", SourcePath: writeFile(t, "first.csv", "first"), TargetPath: filepath.Join(outDir, "first.xlsx")},
		{ID: "queued", SourcePath: writeFile(t, "queued.csv", "queued"), TargetPath: filepath.Join(outDir, "queued.xlsx")},
	}); err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	<-entered
	if !s.Stop() {
		t.Fatal("Stop timed out")
	}

	first, _ := s.Task("first")
	if first.Status != batch.StatusCompleted {
		t.Fatalf("dispatched chain status = %s err=%q", first.Status, first.Error)
	}
	if got, _ := os.ReadFile(filepath.Join(outDir, "first.xlsx")); string(got) != "first|json|xlsx" {
		t.Fatalf("first.xlsx = %q", got)
	}
	if queued, _ := s.Task("queued"); queued.Status != batch.StatusPending {
		t.Fatalf("undispatched task status = %s", queued.Status)
	}
}
