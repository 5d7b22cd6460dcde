package formats_test

import (
	"path/filepath"
	"testing"

	"transmute/internal/formats"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want formats.Format
	}{
		{"CSV", "csv"},
		{" .Json ", "json"},
		{"yml", "yml"},
		{"", ""},
		{".", ""},
	}
	for _, tc := range cases {
		if got := formats.Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeAllDropsDuplicates(t *testing.T) {
	got := formats.NormalizeAll([]string{"PNG", "png", "", "Jpg"})
	if len(got) != 2 || got[0] != "png" || got[1] != "jpg" {
		t.Fatalf("unexpected normalized list: %v", got)
	}
}

func TestPairKeys(t *testing.T) {
	p := formats.NewPair("CSV", "Json")
	if p.String() != "csv->json" {
		t.Fatalf("unexpected pair string %q", p.String())
	}
	if p.OptionKey() != "csv_to_json" {
		t.Fatalf("unexpected option key %q", p.OptionKey())
	}
	if p.Identity() {
		t.Fatal("csv->json is not identity")
	}
}

func TestPathPairsAndString(t *testing.T) {
	path := formats.Path{"csv", "json", "xlsx"}
	if path.Hops() != 2 {
		t.Fatalf("expected 2 hops, got %d", path.Hops())
	}
	pairs := path.Pairs()
	if len(pairs) != 2 || pairs[1] != (formats.Pair{Source: "json", Target: "xlsx"}) {
		t.Fatalf("unexpected pairs: %v", pairs)
	}
	if path.String() != "csv -> json -> xlsx" {
		t.Fatalf("unexpected path string %q", path.String())
	}
	if (formats.Path{"csv"}).Pairs() != nil {
		t.Fatal("identity path has no pairs")
	}
}

func TestFromPathAndTargetPath(t *testing.T) {
	if got := formats.FromPath("/tmp/Report.CSV"); got != "csv" {
		t.Fatalf("FromPath = %q", got)
	}
	if got := formats.FromPath("/tmp/noext"); got != "" {
		t.Fatalf("expected empty format, got %q", got)
	}
	got := formats.TargetPath("/in/report.csv", "/out", "json")
	if got != filepath.Join("/out", "report.json") {
		t.Fatalf("TargetPath = %q", got)
	}
	got = formats.TargetPath("/in/report.csv", "", "json")
	if got != filepath.Join("/in", "report.json") {
		t.Fatalf("TargetPath next to source = %q", got)
	}
}

func TestCategoryLookup(t *testing.T) {
	c, ok := formats.CategoryOf("PNG")
	if !ok || c != formats.CategoryImage {
		t.Fatalf("expected image category, got %q ok=%v", c, ok)
	}
	if _, ok := formats.CategoryOf("unknown"); ok {
		t.Fatal("expected unknown format to have no category")
	}
	if formats.CategoryData.Title() != "Data" {
		t.Fatalf("unexpected title %q", formats.CategoryData.Title())
	}
}
