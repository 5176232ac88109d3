package spool

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/abdul-hamid-achik/media-vault/internal/apperror"
)

func newTestReceiver(t *testing.T) *Receiver {
	t.Helper()
	dir := t.TempDir()
	return New(Config{SpoolDir: dir, MaxUploadSize: 1024})
}

func TestAppendChunkHappyPath(t *testing.T) {
	ctx := context.Background()
	r := newTestReceiver(t)

	if err := r.AppendChunk(ctx, "owner-1", "u1", 0, 2, "a.mp4", []byte("hello")); err != nil {
		t.Fatalf("AppendChunk(0): %v", err)
	}
	if err := r.AppendChunk(ctx, "owner-1", "u1", 1, 2, "a.mp4", []byte("world")); err != nil {
		t.Fatalf("AppendChunk(1): %v", err)
	}

	completed, err := r.CompleteUpload(ctx, "owner-1", "u1", "a.mp4", 2)
	if err != nil {
		t.Fatalf("CompleteUpload: %v", err)
	}

	data, err := os.ReadFile(completed.SpoolPath)
	if err != nil {
		t.Fatalf("read spool file: %v", err)
	}
	if string(data) != "helloworld" {
		t.Errorf("spool contents = %q, want helloworld", string(data))
	}
}

func TestAppendChunkOutOfOrderRejected(t *testing.T) {
	ctx := context.Background()
	r := newTestReceiver(t)

	if err := r.AppendChunk(ctx, "owner-1", "u1", 0, 2, "a.mp4", []byte("hello")); err != nil {
		t.Fatalf("AppendChunk(0): %v", err)
	}
	err := r.AppendChunk(ctx, "owner-1", "u1", 2, 2, "a.mp4", []byte("world"))
	if err != apperror.ErrOutOfOrderChunk {
		t.Fatalf("AppendChunk(2) after 0 = %v, want ErrOutOfOrderChunk", err)
	}
}

func TestAppendChunkOwnerMismatchRejected(t *testing.T) {
	ctx := context.Background()
	r := newTestReceiver(t)

	if err := r.AppendChunk(ctx, "owner-1", "u1", 0, 1, "a.mp4", []byte("hi")); err != nil {
		t.Fatalf("AppendChunk(0): %v", err)
	}
	err := r.AppendChunk(ctx, "owner-2", "u1", 1, 1, "a.mp4", []byte("bye"))
	if err != apperror.ErrSpoolOwnerMismatch {
		t.Fatalf("AppendChunk with wrong owner = %v, want ErrSpoolOwnerMismatch", err)
	}
}

func TestAppendChunkTooLargeRejected(t *testing.T) {
	ctx := context.Background()
	r := newTestReceiver(t)

	big := make([]byte, 2048)
	err := r.AppendChunk(ctx, "owner-1", "u1", 0, 1, "a.mp4", big)
	if err != apperror.ErrFileTooLarge {
		t.Fatalf("AppendChunk oversize = %v, want ErrFileTooLarge", err)
	}
}

func TestCompleteUploadIncomplete(t *testing.T) {
	ctx := context.Background()
	r := newTestReceiver(t)

	if err := r.AppendChunk(ctx, "owner-1", "u1", 0, 2, "a.mp4", []byte("hi")); err != nil {
		t.Fatalf("AppendChunk(0): %v", err)
	}
	_, err := r.CompleteUpload(ctx, "owner-1", "u1", "a.mp4", 2)
	if err != apperror.ErrUploadIncomplete {
		t.Fatalf("CompleteUpload early = %v, want ErrUploadIncomplete", err)
	}
}

func TestCompleteUploadUnknownSession(t *testing.T) {
	ctx := context.Background()
	r := newTestReceiver(t)

	_, err := r.CompleteUpload(ctx, "owner-1", "missing", "a.mp4", 1)
	if err != apperror.ErrSpoolNotFound {
		t.Fatalf("CompleteUpload unknown = %v, want ErrSpoolNotFound", err)
	}
}

func TestAbortUploadRemovesSpoolFile(t *testing.T) {
	ctx := context.Background()
	r := newTestReceiver(t)

	if err := r.AppendChunk(ctx, "owner-1", "u1", 0, 1, "a.mp4", []byte("hi")); err != nil {
		t.Fatalf("AppendChunk(0): %v", err)
	}
	path := r.spoolPath("u1")

	if err := r.AbortUpload(ctx, "owner-1", "u1"); err != nil {
		t.Fatalf("AbortUpload: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected spool file removed, stat err = %v", err)
	}

	// Idempotent: aborting again is a no-op, not an error.
	if err := r.AbortUpload(ctx, "owner-1", "u1"); err != nil {
		t.Errorf("second AbortUpload = %v, want nil", err)
	}
}

func TestCompleteUploadConcurrentOnlyOneSucceeds(t *testing.T) {
	ctx := context.Background()
	r := newTestReceiver(t)

	if err := r.AppendChunk(ctx, "owner-1", "u1", 0, 2, "a.mp4", []byte("hello")); err != nil {
		t.Fatalf("AppendChunk(0): %v", err)
	}
	if err := r.AppendChunk(ctx, "owner-1", "u1", 1, 2, "a.mp4", []byte("world")); err != nil {
		t.Fatalf("AppendChunk(1): %v", err)
	}

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	notFound := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.CompleteUpload(ctx, "owner-1", "u1", "a.mp4", 2)
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				successes++
			case apperror.ErrSpoolNotFound:
				notFound++
			default:
				t.Errorf("CompleteUpload concurrent = %v, want nil or ErrSpoolNotFound", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successes = %d, want 1", successes)
	}
	if notFound != attempts-1 {
		t.Errorf("notFound = %d, want %d", notFound, attempts-1)
	}
}
