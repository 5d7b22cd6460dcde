package formats

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Format is a lowercase token identifying a file content type (e.g. "csv").
type Format string

var folder = cases.Lower(language.Und)

// Normalize trims whitespace and a leading dot, then case-folds the token.
func Normalize(value string) Format {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, ".")
	if value == "" {
		return ""
	}
	return Format(folder.String(value))
}

// NormalizeAll normalizes every entry, dropping empties and duplicates while
// preserving first-seen order.
func NormalizeAll(values []string) []Format {
	out := make([]Format, 0, len(values))
	seen := make(map[Format]struct{}, len(values))
	for _, v := range values {
		f := Normalize(v)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// String returns the token.
func (f Format) String() string { return string(f) }

// Equal compares formats case-insensitively.
func (f Format) Equal(other Format) bool {
	return Normalize(string(f)) == Normalize(string(other))
}

// FromPath infers a format from the file extension of path.
func FromPath(path string) Format {
	return Normalize(filepath.Ext(path))
}

// TargetPath builds the output path for converting source into format inside
// dir. An empty dir places the output next to the source.
func TargetPath(source, dir string, format Format) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "output"
	}
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Dir(source)
	}
	return filepath.Join(dir, stem+"."+string(format))
}

// Pair is a directed (source, target) format combination.
type Pair struct {
	Source Format
	Target Format
}

// NewPair normalizes both sides.
func NewPair(source, target string) Pair {
	return Pair{Source: Normalize(source), Target: Normalize(target)}
}

// String renders "csv->json".
func (p Pair) String() string {
	return string(p.Source) + "->" + string(p.Target)
}

// OptionKey renders "csv_to_json", the key under which step-specific options
// live in a chained conversion.
func (p Pair) OptionKey() string {
	return string(p.Source) + "_to_" + string(p.Target)
}

// Identity reports whether source and target are the same format.
func (p Pair) Identity() bool {
	return p.Source == p.Target
}

// Path is an ordered sequence of formats where consecutive entries are
// connected by a registered capability.
type Path []Format

// Hops returns the number of conversion steps.
func (p Path) Hops() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

// Pairs returns the consecutive steps of the path.
func (p Path) Pairs() []Pair {
	if len(p) < 2 {
		return nil
	}
	pairs := make([]Pair, 0, len(p)-1)
	for i := 0; i < len(p)-1; i++ {
		pairs = append(pairs, Pair{Source: p[i], Target: p[i+1]})
	}
	return pairs
}

// String renders "csv -> json -> xlsx".
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, f := range p {
		parts[i] = string(f)
	}
	return strings.Join(parts, " -> ")
}
