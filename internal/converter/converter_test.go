package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"transmute/internal/formats"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestNewAppliesGuards(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "in.csv", "a,b\n")

	upper := New("csv", "txt", func(_ context.Context, sourcePath, targetPath string, _ Options) error {
		data, err := os.ReadFile(sourcePath)
		if err != nil {
			return err
		}
		return os.WriteFile(targetPath, []byte(strings.ToUpper(string(data))), 0o644)
	})

	target := filepath.Join(dir, "deep", "nested", "out.txt")
	if res := upper.Convert(context.Background(), src, target, nil); !res.OK {
		t.Fatalf("convert failed: %s", res.Message())
	}
	got, err := os.ReadFile(target)
	if err != nil || string(got) != "A,B\n" {
		t.Fatalf("unexpected output %q err=%v", got, err)
	}
	if upper.Source() != "csv" || upper.Target() != "txt" {
		t.Fatalf("pair = %s->%s", upper.Source(), upper.Target())
	}
}

func TestGuardFailures(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "in.csv", "x")
	empty := writeSource(t, dir, "empty.csv", "")

	noop := New("csv", "json", func(context.Context, string, string, Options) error { return nil })
	failing := New("csv", "json", func(context.Context, string, string, Options) error { return errors.New("bad row 3") })
	panicking := New("csv", "json", func(context.Context, string, string, Options) error { panic("kaboom") })

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		conv Converter
		ctx  context.Context
		src  string
		want string
	}{
		{"missing source", noop, context.Background(), filepath.Join(dir, "nope.csv"), "invalid source"},
		{"empty source", noop, context.Background(), empty, "invalid source"},
		{"no output", noop, context.Background(), src, "produced no output"},
		{"converter error", failing, context.Background(), src, "bad row 3"},
		{"panic", panicking, context.Background(), src, "panicked: kaboom"},
		{"canceled", noop, canceled, src, "context canceled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.conv.Convert(tt.ctx, tt.src, filepath.Join(dir, tt.name+".json"), nil)
			if res.OK {
				t.Fatal("expected failure")
			}
			if !strings.Contains(res.Err, tt.want) {
				t.Fatalf("error %q does not contain %q", res.Err, tt.want)
			}
		})
	}
}

type rawConverter struct{ fail bool }

func (rawConverter) Source() formats.Format { return "a" }
func (rawConverter) Target() formats.Format { return "b" }
func (r rawConverter) Convert(_ context.Context, _, target string, _ Options) Result {
	if r.fail {
		return Result{}
	}
	return FromError(os.WriteFile(target, []byte("ok"), 0o644))
}

func TestSafeConvertWrapsArbitraryConverters(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "in.a", "payload")

	if res := SafeConvert(context.Background(), rawConverter{}, src, filepath.Join(dir, "out", "x.b"), nil); !res.OK {
		t.Fatalf("expected success, got %q", res.Err)
	}
	res := SafeConvert(context.Background(), rawConverter{fail: true}, src, filepath.Join(dir, "y.b"), nil)
	if res.OK || res.Err != "a->b conversion failed" {
		t.Fatalf("expected placeholder message, got %+v", res)
	}
	if res := SafeConvert(context.Background(), nil, src, filepath.Join(dir, "z.b"), nil); res.OK {
		t.Fatal("nil converter must fail")
	}
}

func TestIdentityCopies(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "in.JSON", `{"a":1}`)
	id := Identity(".JSON")
	if id.Source() != "json" || id.Target() != "json" {
		t.Fatalf("identity pair = %s->%s", id.Source(), id.Target())
	}
	dst := filepath.Join(dir, "copy", "out.json")
	if res := id.Convert(context.Background(), src, dst, nil); !res.OK {
		t.Fatalf("identity failed: %s", res.Err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != `{"a":1}` {
		t.Fatalf("copy = %q", got)
	}
}

func TestOptionsFor(t *testing.T) {
	scoped := map[string]any{"indent": 4}
	opts := Options{"csv_to_json": scoped, "delimiter": ";"}

	got := OptionsFor(opts, formats.NewPair("csv", "json"))
	if got.Int("indent", 0) != 4 {
		t.Fatalf("expected scoped options, got %v", got)
	}
	full := OptionsFor(opts, formats.NewPair("json", "yaml"))
	if full.String("delimiter", ",") != ";" {
		t.Fatalf("expected full options, got %v", full)
	}
	if OptionsFor(nil, formats.NewPair("a", "b")) != nil {
		t.Fatal("nil options should stay nil")
	}
}

func TestOptionAccessors(t *testing.T) {
	opts := Options{"width": "320", "quality": 80.0, "strip": "true", "name": "  "}
	if opts.Int("width", 0) != 320 || opts.Int("quality", 0) != 80 || opts.Int("missing", 7) != 7 {
		t.Fatalf("Int accessors wrong: %v", opts)
	}
	if !opts.Bool("strip", false) || opts.Bool("missing", false) {
		t.Fatal("Bool accessors wrong")
	}
	if opts.String("name", "def") != "def" {
		t.Fatal("blank string should fall back to default")
	}
}

func TestDescriptorPairsSkipIdentity(t *testing.T) {
	d := Descriptor{Name: "data", Sources: []string{"CSV", "json"}, Targets: []string{"json", "yaml"}}
	got := d.Pairs()
	want := []string{"csv->json", "csv->yaml", "json->yaml"}
	if len(got) != len(want) {
		t.Fatalf("pairs = %v", got)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Fatalf("pairs[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
