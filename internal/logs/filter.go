package logs

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Filter selects JSON log records. Zero fields match everything.
type Filter struct {
	BatchID   string
	TaskID    string
	Component string
	// MinLevel drops records below this level; nil keeps every level.
	MinLevel slog.Leveler
}

// Empty reports whether the filter accepts every line unparsed.
func (f Filter) Empty() bool {
	return f.BatchID == "" && f.TaskID == "" && f.Component == "" && f.MinLevel == nil
}

// Match reports whether line is a JSON record that satisfies the filter.
// Lines that are not JSON objects only match an empty filter.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return false
	}
	if !fieldEquals(record, "batch_id", f.BatchID) ||
		!fieldEquals(record, "task_id", f.TaskID) ||
		!fieldEquals(record, "component", f.Component) {
		return false
	}
	if f.MinLevel != nil {
		raw, _ := record[slog.LevelKey].(string)
		var level slog.Level
		if err := level.UnmarshalText([]byte(raw)); err != nil || level < f.MinLevel.Level() {
			return false
		}
	}
	return true
}

// Apply returns the lines that match.
func (f Filter) Apply(lines []string) []string {
	if f.Empty() {
		return lines
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if f.Match(line) {
			out = append(out, line)
		}
	}
	return out
}

func fieldEquals(record map[string]any, key, want string) bool {
	if want == "" {
		return true
	}
	got, _ := record[key].(string)
	return strings.EqualFold(got, want)
}
