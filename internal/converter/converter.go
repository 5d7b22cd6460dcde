package converter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"transmute/internal/formats"
)

// Options carries free-form converter settings. A nested map stored under a
// pair's option key ("csv_to_json") scopes settings to that step of a chain.
type Options map[string]any

// Result is the outcome of a single conversion.
type Result struct {
	OK  bool   `json:"ok"`
	Err string `json:"error,omitempty"`
}

// Succeeded returns a successful result.
func Succeeded() Result { return Result{OK: true} }

// Failed returns a failed result with a formatted message.
func Failed(format string, args ...any) Result {
	return Result{Err: fmt.Sprintf(format, args...)}
}

// FromError converts err into a result; nil means success.
func FromError(err error) Result {
	if err == nil {
		return Succeeded()
	}
	return Result{Err: err.Error()}
}

// Message returns the failure text, substituting a placeholder when a failed
// result carries none.
func (r Result) Message() string {
	if r.OK {
		return ""
	}
	if strings.TrimSpace(r.Err) == "" {
		return "conversion failed"
	}
	return r.Err
}

// Converter transforms a file in one format into a file in another.
type Converter interface {
	Source() formats.Format
	Target() formats.Format
	Convert(ctx context.Context, sourcePath, targetPath string, opts Options) Result
}

// Factory produces a converter instance for one pair of a loaded provider.
type Factory func(pair formats.Pair) Converter

// Descriptor names a converter provider for discovery.
type Descriptor struct {
	Name    string
	Sources []string
	Targets []string
	// Load prepares the provider (probing binaries, reading config). An error
	// or panic makes discovery skip the descriptor.
	Load func(ctx context.Context) (Factory, error)
}

// Pairs lists every (source, target) combination the descriptor covers,
// excluding identities.
func (d Descriptor) Pairs() []formats.Pair {
	sources := formats.NormalizeAll(d.Sources)
	targets := formats.NormalizeAll(d.Targets)
	pairs := make([]formats.Pair, 0, len(sources)*len(targets))
	for _, s := range sources {
		for _, t := range targets {
			if s == t {
				continue
			}
			pairs = append(pairs, formats.Pair{Source: s, Target: t})
		}
	}
	return pairs
}

// OptionsFor returns the options scoped to pair: the nested map under the
// pair's option key when present, otherwise the full map.
func OptionsFor(opts Options, pair formats.Pair) Options {
	if opts == nil {
		return nil
	}
	switch scoped := opts[pair.OptionKey()].(type) {
	case Options:
		return scoped
	case map[string]any:
		return Options(scoped)
	}
	return opts
}

// String returns the string option key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		switch typed := v.(type) {
		case string:
			if strings.TrimSpace(typed) != "" {
				return typed
			}
		case fmt.Stringer:
			return typed.String()
		}
	}
	return def
}

// Int returns the integer option key or def. Numeric strings are parsed.
func (o Options) Int(key string, def int) int {
	switch typed := o[key].(type) {
	case int:
		return typed
	case int64:
		return int(typed)
	case float64:
		return int(typed)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(typed)); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the boolean option key or def.
func (o Options) Bool(key string, def bool) bool {
	switch typed := o[key].(type) {
	case bool:
		return typed
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(typed)); err == nil {
			return b
		}
	}
	return def
}
