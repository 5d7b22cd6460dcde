package main

import (
	"fmt"
	"strings"

	"transmute/internal/converter"
)

// parseOptions turns repeated --option key=value flags into converter
// options. A key of the form "csv_to_json.delimiter" scopes the value to that
// step of a chained conversion.
func parseOptions(raw []string) (converter.Options, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	opts := converter.Options{}
	for _, entry := range raw {
		key, value, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q: expected key=value", entry)
		}
		scope, name, scoped := strings.Cut(key, ".")
		if !scoped {
			opts[key] = value
			continue
		}
		if name == "" {
			return nil, fmt.Errorf("invalid option %q: missing name after %q", entry, scope+".")
		}
		nested, _ := opts[scope].(converter.Options)
		if nested == nil {
			nested = converter.Options{}
			opts[scope] = nested
		}
		nested[name] = value
	}
	return opts, nil
}
