package store

import (
	"context"
	"io"
	"time"

	"github.com/abdul-hamid-achik/media-vault/internal/metrics"
)

// instrumented wraps a Store, recording metrics.StorageOperationsTotal/
// StorageOperationDuration/StorageBytesTotal around every call except
// HealthCheck, which passes through unrecorded. Generalizes
// an InstrumentedStorage wrapper's flat key/Upload/Download pair to this
// package's folder-and-blob contract.
type instrumented struct {
	Store
}

// Instrument wraps s so every call other than HealthCheck reports to the
// shared Prometheus collectors.
func Instrument(s Store) Store {
	return &instrumented{Store: s}
}

func (s *instrumented) ResolvePath(ctx context.Context, path []string) (string, error) {
	start := time.Now()
	id, err := s.Store.ResolvePath(ctx, path)
	record("resolve_path", start, err, 0)
	return id, err
}

func (s *instrumented) EnsurePath(ctx context.Context, path []string) (string, error) {
	start := time.Now()
	id, err := s.Store.EnsurePath(ctx, path)
	record("ensure_path", start, err, 0)
	return id, err
}

func (s *instrumented) ListChildren(ctx context.Context, folderID string, filter Filter) ([]Child, error) {
	start := time.Now()
	children, err := s.Store.ListChildren(ctx, folderID, filter)
	record("list_children", start, err, 0)
	return children, err
}

func (s *instrumented) UploadResumable(ctx context.Context, localPath, name, parentFolderID, mime string, progressCB ProgressFunc) (string, error) {
	start := time.Now()
	fileID, err := s.Store.UploadResumable(ctx, localPath, name, parentFolderID, mime, progressCB)
	meta, metaErr := s.Store.GetMetadata(ctx, fileID)
	size := int64(0)
	if metaErr == nil {
		size = meta.Size
	}
	record("upload", start, err, size)
	return fileID, err
}

func (s *instrumented) DownloadRange(ctx context.Context, fileID string, start, end int64) (io.ReadCloser, error) {
	begin := time.Now()
	body, err := s.Store.DownloadRange(ctx, fileID, start, end)
	if err != nil {
		record("download", begin, err, 0)
		return nil, err
	}
	metrics.StorageOperationsTotal.WithLabelValues("download", "success").Inc()
	metrics.StorageOperationDuration.WithLabelValues("download").Observe(time.Since(begin).Seconds())
	return &instrumentedReadCloser{ReadCloser: body}, nil
}

func (s *instrumented) GetMetadata(ctx context.Context, fileID string) (Metadata, error) {
	start := time.Now()
	meta, err := s.Store.GetMetadata(ctx, fileID)
	record("get_metadata", start, err, 0)
	return meta, err
}

func (s *instrumented) Exists(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	ok, err := s.Store.Exists(ctx, id)
	record("exists", start, err, 0)
	return ok, err
}

func (s *instrumented) Rename(ctx context.Context, id, newName string) error {
	start := time.Now()
	err := s.Store.Rename(ctx, id, newName)
	record("rename", start, err, 0)
	return err
}

func (s *instrumented) Move(ctx context.Context, fileID, newParentFolderID string) error {
	start := time.Now()
	err := s.Store.Move(ctx, fileID, newParentFolderID)
	record("move", start, err, 0)
	return err
}

func (s *instrumented) DeleteFile(ctx context.Context, id string) error {
	start := time.Now()
	err := s.Store.DeleteFile(ctx, id)
	record("delete_file", start, err, 0)
	return err
}

func (s *instrumented) DeleteFolder(ctx context.Context, id string) error {
	start := time.Now()
	err := s.Store.DeleteFolder(ctx, id)
	record("delete_folder", start, err, 0)
	return err
}

func record(op string, start time.Time, err error, bytes int64) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordStorageOp(op, status, time.Since(start).Seconds(), bytes)
}

type instrumentedReadCloser struct {
	io.ReadCloser
	bytesRead int64
}

func (r *instrumentedReadCloser) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	r.bytesRead += int64(n)
	return n, err
}

func (r *instrumentedReadCloser) Close() error {
	metrics.StorageBytesTotal.WithLabelValues("download").Add(float64(r.bytesRead))
	return r.ReadCloser.Close()
}
