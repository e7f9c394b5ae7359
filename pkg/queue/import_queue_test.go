package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestQueue(t *testing.T) *RedisImportQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := NewRedisImportQueue(ImportQueueConfig{
		Addr:       mr.Addr(),
		Stream:     "test:catalog_import",
		Group:      "test-importers",
		Consumer:   "test-consumer",
		MaxRetries: 2,
	})
	if err != nil {
		t.Fatalf("NewRedisImportQueue: %v", err)
	}
	return q
}

func TestNewRedisImportQueueRequiresAddr(t *testing.T) {
	if _, err := NewRedisImportQueue(ImportQueueConfig{}); err == nil {
		t.Fatal("expected error for empty addr")
	}
}

func TestEnqueueAndGetJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "admin@gmail.com")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected job id")
	}
	if job.Status != StatusQueued {
		t.Fatalf("status = %q, want %q", job.Status, StatusQueued)
	}

	got, ok, err := q.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if !ok {
		t.Fatal("job not found after enqueue")
	}
	if got.RequestedBy != "admin@gmail.com" {
		t.Fatalf("requestedBy = %q", got.RequestedBy)
	}
	if got.Attempts != 0 {
		t.Fatalf("attempts = %d, want 0", got.Attempts)
	}

	n, err := q.client.XLen(ctx, q.stream).Result()
	if err != nil {
		t.Fatalf("XLen: %v", err)
	}
	if n != 1 {
		t.Fatalf("stream length = %d, want 1", n)
	}
}

func TestGetJobUnknown(t *testing.T) {
	q := newTestQueue(t)

	_, ok, err := q.GetJob(context.Background(), "no-such-job")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if ok {
		t.Fatal("expected unknown job to be absent")
	}
	if _, ok, _ := q.GetJob(context.Background(), "  "); ok {
		t.Fatal("blank id should not resolve")
	}
}

func TestMarkProcessingIncrementsAttempts(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "admin@gmail.com")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	first, err := q.markProcessing(ctx, job.ID, job.RequestedBy)
	if err != nil {
		t.Fatalf("markProcessing: %v", err)
	}
	if first.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", first.Attempts)
	}
	if first.Status != StatusProcessing {
		t.Fatalf("status = %q, want %q", first.Status, StatusProcessing)
	}

	second, err := q.markProcessing(ctx, job.ID, job.RequestedBy)
	if err != nil {
		t.Fatalf("markProcessing: %v", err)
	}
	if second.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", second.Attempts)
	}
}

func TestMarkStatusTransitions(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "admin@gmail.com")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := q.markStatus(ctx, job.ID, StatusFailed, "catalog source unavailable"); err != nil {
		t.Fatalf("markStatus: %v", err)
	}
	got, ok, err := q.GetJob(ctx, job.ID)
	if err != nil || !ok {
		t.Fatalf("GetJob: ok=%v err=%v", ok, err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("status = %q, want %q", got.Status, StatusFailed)
	}
	if got.ErrorMessage != "catalog source unavailable" {
		t.Fatalf("errorMessage = %q", got.ErrorMessage)
	}

	if err := q.markStatus(ctx, job.ID, StatusDone, ""); err != nil {
		t.Fatalf("markStatus: %v", err)
	}
	got, _, _ = q.GetJob(ctx, job.ID)
	if got.Status != StatusDone || got.ErrorMessage != "" {
		t.Fatalf("got status=%q error=%q, want done with no error", got.Status, got.ErrorMessage)
	}
}

func TestWriteStatusSetsTTL(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "admin@gmail.com")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	ttl, err := q.client.TTL(ctx, q.jobKey(job.ID)).Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > 24*time.Hour {
		t.Fatalf("ttl = %v, want within (0, 24h]", ttl)
	}
}
