// Package store abstracts the remote folder-and-blob object store (C4),
// modeled on a Storage interface shape (ctx-first methods, sentinel
// errors) but with the richer hierarchical-navigation and resumable-chunk
// contract this pipeline requires. The concrete backend lives in
// internal/store/drive.
package store

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrInvalidPath   = errors.New("store: invalid path")
	ErrAccessDenied  = errors.New("store: access denied")
)

// Filter narrows ListChildren to one media family.
type Filter string

const (
	FilterVideo Filter = "video"
	FilterPDF   Filter = "pdf"
	FilterAny   Filter = "any"
)

// ProgressFunc reports upload progress as a 0.0..1.0 fraction; the final
// call for a given upload always reports 1.0.
type ProgressFunc func(fraction float64)

// Metadata is the result of a single-round-trip GetMetadata call.
type Metadata struct {
	Size int64
	Mime string
}

// Store is the object-store adapter contract. All write operations are
// idempotent on the caller's side: callers must tolerate both
// "created before crash, retried after" and "delete-nonexistent". The
// adapter MUST NOT cache folder ids across invocations — reconciliation
// depends on fresh lookups every call.
type Store interface {
	// ResolvePath walks segments from the configured root; returns
	// ErrNotFound if any segment is missing. Read-only.
	ResolvePath(ctx context.Context, path []string) (folderID string, err error)

	// EnsurePath walks segments, creating any missing segment as a folder;
	// returns the leaf folder id.
	EnsurePath(ctx context.Context, path []string) (folderID string, err error)

	// ListChildren returns direct children of folderID matching filter,
	// folding the "subfolder wrapping a single video" shape into Child's
	// tagged variant (see child.go).
	ListChildren(ctx context.Context, folderID string, filter Filter) ([]Child, error)

	// UploadResumable uploads localPath in upload_chunk_cap_bytes chunks
	// (default 10MiB), invoking progressCB with a monotonically increasing
	// fraction after each chunk; the final invocation always reports 1.0.
	UploadResumable(ctx context.Context, localPath, name, parentFolderID, mime string, progressCB ProgressFunc) (fileID string, err error)

	// DownloadRange returns a reader over bytes [start, end] inclusive
	// (end < 0 means EOF), refreshing credentials first if expired. Reads
	// from it are not cut to download_chunk_bytes.
	DownloadRange(ctx context.Context, fileID string, start, end int64) (io.ReadCloser, error)

	GetMetadata(ctx context.Context, fileID string) (Metadata, error)
	Exists(ctx context.Context, id string) (bool, error)
	Rename(ctx context.Context, id, newName string) error
	Move(ctx context.Context, fileID, newParentFolderID string) error
	DeleteFile(ctx context.Context, id string) error
	DeleteFolder(ctx context.Context, id string) error // recursive

	// HealthCheck is consumed by internal/health's readiness probe.
	HealthCheck(ctx context.Context) error
}
