package reconcile

import (
	"context"
	"errors"
	"io"
	"strconv"
	"testing"

	"github.com/abdul-hamid-achik/media-vault/internal/catalog"
	"github.com/abdul-hamid-achik/media-vault/internal/store"
)

type fakeCatalog struct {
	rows     map[string]*catalog.Artifact // id -> artifact
	deleted  []string
	imported []*catalog.Artifact
	nextID   int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{rows: make(map[string]*catalog.Artifact)}
}

func (f *fakeCatalog) DeleteByHierarchyPath(ctx context.Context, owner, hierarchyPath string, kind catalog.Kind) (int, error) {
	n := 0
	for id, a := range f.rows {
		if a.Owner == owner && a.HierarchyPath == hierarchyPath && a.Kind == kind {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeCatalog) ListByHierarchyPath(ctx context.Context, owner, hierarchyPath string, kind catalog.Kind) ([]*catalog.Artifact, error) {
	var out []*catalog.Artifact
	for _, a := range f.rows {
		if a.Owner == owner && a.HierarchyPath == hierarchyPath && a.Kind == kind {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeCatalog) DeleteArtifact(ctx context.Context, id string) error {
	if _, ok := f.rows[id]; !ok {
		return errors.New("not found")
	}
	delete(f.rows, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCatalog) ImportArtifact(ctx context.Context, a *catalog.Artifact) (string, error) {
	f.nextID++
	id := "new-" + strconv.Itoa(f.nextID)
	a.ID = id
	f.rows[id] = a
	f.imported = append(f.imported, a)
	return id, nil
}

type fakeStore struct {
	resolveErr error
	children   []store.Child
	exists     map[string]bool
}

func (s *fakeStore) ResolvePath(ctx context.Context, path []string) (string, error) {
	if s.resolveErr != nil {
		return "", s.resolveErr
	}
	return "folder-1", nil
}
func (s *fakeStore) EnsurePath(ctx context.Context, path []string) (string, error) { return "", nil }
func (s *fakeStore) ListChildren(ctx context.Context, folderID string, filter store.Filter) ([]store.Child, error) {
	var out []store.Child
	for _, c := range s.children {
		match := (filter == store.FilterVideo && (c.Mime == "video/mp4")) ||
			(filter == store.FilterPDF && c.Mime == "application/pdf") ||
			filter == store.FilterAny
		if match {
			out = append(out, c)
		}
	}
	return out, nil
}
func (s *fakeStore) UploadResumable(ctx context.Context, localPath, name, parentFolderID, mime string, progressCB store.ProgressFunc) (string, error) {
	return "", nil
}
func (s *fakeStore) DownloadRange(ctx context.Context, fileID string, start, end int64) (io.ReadCloser, error) {
	return nil, nil
}
func (s *fakeStore) GetMetadata(ctx context.Context, fileID string) (store.Metadata, error) {
	return store.Metadata{}, nil
}
func (s *fakeStore) Exists(ctx context.Context, id string) (bool, error) { return s.exists[id], nil }
func (s *fakeStore) Rename(ctx context.Context, id, newName string) error             { return nil }
func (s *fakeStore) Move(ctx context.Context, fileID, newParentFolderID string) error { return nil }
func (s *fakeStore) DeleteFile(ctx context.Context, id string) error                  { return nil }
func (s *fakeStore) DeleteFolder(ctx context.Context, id string) error                { return nil }
func (s *fakeStore) HealthCheck(ctx context.Context) error                            { return nil }

func TestReconcileScopePurgesWhenFolderMissing(t *testing.T) {
	fc := newFakeCatalog()
	fc.rows["a1"] = &catalog.Artifact{ID: "a1", Owner: "owner-1", Kind: catalog.KindVideo, HierarchyPath: "org/chapter"}

	s := &Scanner{Catalog: fc, Store: &fakeStore{resolveErr: store.ErrNotFound}}
	result, err := s.ReconcileScope(context.Background(), "owner-1", []string{"org", "chapter"}, "org/chapter")
	if err != nil {
		t.Fatalf("ReconcileScope: %v", err)
	}
	if result.VideosRemoved != 1 {
		t.Errorf("VideosRemoved = %d, want 1", result.VideosRemoved)
	}
	if len(fc.rows) != 0 {
		t.Errorf("expected all rows purged, got %d remaining", len(fc.rows))
	}
}

func TestReconcileScopeImportsNewVideo(t *testing.T) {
	fc := newFakeCatalog()
	fs := &fakeStore{
		children: []store.Child{
			{Kind: store.ChildBare, ID: "file-1", Name: "clip.mp4", Mime: "video/mp4"},
		},
	}
	s := &Scanner{Catalog: fc, Store: fs}

	result, err := s.ReconcileScope(context.Background(), "owner-1", []string{"org", "chapter"}, "org/chapter")
	if err != nil {
		t.Fatalf("ReconcileScope: %v", err)
	}
	if result.VideosAdded != 1 {
		t.Errorf("VideosAdded = %d, want 1", result.VideosAdded)
	}
	if len(fc.imported) != 1 || fc.imported[0].RemoteFileID != "file-1" {
		t.Errorf("unexpected imported rows: %+v", fc.imported)
	}
}

func TestReconcileScopeIsIdempotent(t *testing.T) {
	fc := newFakeCatalog()
	fs := &fakeStore{
		children: []store.Child{
			{Kind: store.ChildBare, ID: "file-1", Name: "clip.mp4", Mime: "video/mp4"},
		},
		exists: map[string]bool{"file-1": true},
	}
	s := &Scanner{Catalog: fc, Store: fs}
	ctx := context.Background()

	if _, err := s.ReconcileScope(ctx, "owner-1", []string{"org", "chapter"}, "org/chapter"); err != nil {
		t.Fatalf("first ReconcileScope: %v", err)
	}

	result, err := s.ReconcileScope(ctx, "owner-1", []string{"org", "chapter"}, "org/chapter")
	if err != nil {
		t.Fatalf("second ReconcileScope: %v", err)
	}
	if result.VideosAdded != 0 || result.VideosRemoved != 0 {
		t.Errorf("second pass result = %+v, want all zeros", result)
	}
}
