package services_test

import (
	"context"
	"testing"

	"transmute/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTaskID(ctx, "task-1")
	ctx = services.WithBatchID(ctx, "batch-1")
	ctx = services.WithStep(ctx, 2)
	ctx = services.WithPair(ctx, "csv->json")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.TaskIDFromContext(ctx); !ok || id != "task-1" {
		t.Fatalf("unexpected task id: %v %v", id, ok)
	}
	if id, ok := services.BatchIDFromContext(ctx); !ok || id != "batch-1" {
		t.Fatalf("unexpected batch id: %v %v", id, ok)
	}
	if step, ok := services.StepFromContext(ctx); !ok || step != 2 {
		t.Fatalf("unexpected step: %v %v", step, ok)
	}
	if pair, ok := services.PairFromContext(ctx); !ok || pair != "csv->json" {
		t.Fatalf("unexpected pair: %v %v", pair, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTaskID(ctx, "")
	ctx = services.WithPair(ctx, "")
	if _, ok := services.TaskIDFromContext(ctx); ok {
		t.Fatal("expected no task id value")
	}
	if _, ok := services.PairFromContext(ctx); ok {
		t.Fatal("expected no pair value")
	}
	if _, ok := services.StepFromContext(ctx); ok {
		t.Fatal("expected no step value")
	}
}
