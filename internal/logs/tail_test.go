package logs_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"transmute/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transmute.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\nd\ne\n")

	tests := []struct {
		limit int
		want  []string
	}{
		{limit: 2, want: []string{"d", "e"}},
		{limit: 5, want: []string{"a", "b", "c", "d", "e"}},
		{limit: 10, want: []string{"a", "b", "c", "d", "e"}},
		{limit: 0, want: nil},
	}
	for _, tt := range tests {
		result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: tt.limit})
		if err != nil {
			t.Fatalf("tail %d: %v", tt.limit, err)
		}
		if len(result.Lines) != len(tt.want) {
			t.Fatalf("limit %d: got %#v, want %#v", tt.limit, result.Lines, tt.want)
		}
		for i := range tt.want {
			if result.Lines[i] != tt.want[i] {
				t.Fatalf("limit %d: got %#v, want %#v", tt.limit, result.Lines, tt.want)
			}
		}
		if result.Offset != 10 {
			t.Fatalf("limit %d: offset %d, want 10", tt.limit, result.Offset)
		}
	}
}

func TestTailFromOffset(t *testing.T) {
	path := writeLog(t, "one\ntwo\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 4})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 1 || result.Lines[0] != "two" || result.Offset != 8 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "missing.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := writeLog(t, "start\n")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	initial, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	done := make(chan logs.TailResult, 1)
	go func() {
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: initial.Offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		done <- res
	}()

	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case res := <-done:
		if len(res.Lines) != 1 || res.Lines[0] != "later" {
			t.Fatalf("unexpected follow lines: %#v", res.Lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestFilter(t *testing.T) {
	lines := []string{
		`{"ts":"2026-01-01T00:00:00Z","level":"info","msg":"batch progress","component":"cli","batch_id":"b1"}`,
		`{"ts":"2026-01-01T00:00:01Z","level":"warn","msg":"task failed","component":"batch","batch_id":"b1","task_id":"t2"}`,
		`{"ts":"2026-01-01T00:00:02Z","level":"debug","msg":"step","component":"chain","batch_id":"b2"}`,
		`not json`,
	}

	tests := []struct {
		name   string
		filter logs.Filter
		want   int
	}{
		{name: "empty keeps everything", filter: logs.Filter{}, want: 4},
		{name: "batch", filter: logs.Filter{BatchID: "b1"}, want: 2},
		{name: "task", filter: logs.Filter{TaskID: "t2"}, want: 1},
		{name: "component", filter: logs.Filter{Component: "CHAIN"}, want: 1},
		{name: "level", filter: logs.Filter{MinLevel: slog.LevelWarn}, want: 1},
		{name: "combined", filter: logs.Filter{BatchID: "b1", MinLevel: slog.LevelInfo}, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Apply(lines); len(got) != tt.want {
				t.Fatalf("got %d lines %#v, want %d", len(got), got, tt.want)
			}
		})
	}
}
