package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by the single-row getters when no row matches.
var ErrNotFound = errors.New("catalog: row not found")

// Queries is a hand-maintained, method-per-query store over Postgres,
// mirroring the shape a sqlc-generated `db.Queries` type would have: one
// method per statement, with ids as plain strings and timestamps as
// time.Time scanned natively by pgx/v5.
type Queries struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// CreateArtifact inserts a new PENDING row and returns its assigned id.
func (q *Queries) CreateArtifact(ctx context.Context, a *Artifact) (string, error) {
	const stmt = `
		INSERT INTO artifacts (owner, kind, title, hierarchy_path, status, progress, mime_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
		RETURNING id`

	var id string
	err := q.pool.QueryRow(ctx, stmt,
		a.Owner, a.Kind, a.Title, a.HierarchyPath, StatusPending, a.MimeType, a.SizeBytes,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("catalog: create artifact: %w", err)
	}
	return id, nil
}

// GetArtifact fetches one row by id. Returns ErrNotFound when absent.
func (q *Queries) GetArtifact(ctx context.Context, id string) (*Artifact, error) {
	const stmt = `
		SELECT id, owner, kind, title, hierarchy_path, status, progress, error,
		       COALESCE(remote_file_id, ''), COALESCE(remote_folder_id, ''),
		       size_bytes, mime_type, duration_seconds,
		       COALESCE(thumbnail_ref, ''), COALESCE(preview_ref, ''),
		       created_at, updated_at
		FROM artifacts WHERE id = $1`

	a := &Artifact{}
	err := q.pool.QueryRow(ctx, stmt, id).Scan(
		&a.ID, &a.Owner, &a.Kind, &a.Title, &a.HierarchyPath, &a.Status, &a.Progress, &a.Error,
		&a.RemoteFileID, &a.RemoteFolderID,
		&a.SizeBytes, &a.MimeType, &a.DurationSeconds,
		&a.ThumbnailRef, &a.PreviewRef,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get artifact: %w", err)
	}
	return a, nil
}

// ListArtifacts returns a page of rows matching the scope filter.
func (q *Queries) ListArtifacts(ctx context.Context, f ListFilter) (*ListResult, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}

	const countStmt = `
		SELECT count(*) FROM artifacts
		WHERE owner = $1
		  AND ($2 = '' OR hierarchy_path LIKE $2 || '%')`
	orgPrefix := f.Organization
	if f.Chapter != "" {
		orgPrefix = f.Organization + "/" + f.Chapter
	}

	var total int
	if err := q.pool.QueryRow(ctx, countStmt, f.Owner, orgPrefix).Scan(&total); err != nil {
		return nil, fmt.Errorf("catalog: count artifacts: %w", err)
	}

	const listStmt = `
		SELECT id, owner, kind, title, hierarchy_path, status, progress, error,
		       COALESCE(remote_file_id, ''), COALESCE(remote_folder_id, ''),
		       size_bytes, mime_type, duration_seconds,
		       COALESCE(thumbnail_ref, ''), COALESCE(preview_ref, ''),
		       created_at, updated_at
		FROM artifacts
		WHERE owner = $1
		  AND ($2 = '' OR hierarchy_path LIKE $2 || '%')
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := q.pool.Query(ctx, listStmt, f.Owner, orgPrefix, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("catalog: list artifacts: %w", err)
	}
	defer rows.Close()

	results := make([]*Artifact, 0, pageSize)
	for rows.Next() {
		a := &Artifact{}
		if err := rows.Scan(
			&a.ID, &a.Owner, &a.Kind, &a.Title, &a.HierarchyPath, &a.Status, &a.Progress, &a.Error,
			&a.RemoteFileID, &a.RemoteFolderID,
			&a.SizeBytes, &a.MimeType, &a.DurationSeconds,
			&a.ThumbnailRef, &a.PreviewRef,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("catalog: scan artifact: %w", err)
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list artifacts: %w", err)
	}

	return &ListResult{Results: results, Total: total, Page: page, PageSize: pageSize}, nil
}

// UpdateStatus moves an artifact to a new status and sets the error
// message to errMsg, for any status (NULL when errMsg is empty). Moving to
// FAILED or CANCELED also resets progress to 0, so every caller gets that
// reset without having to remember it individually.
func (q *Queries) UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error {
	const stmt = `
		UPDATE artifacts
		SET status = $2,
		    error = NULLIF($3, ''),
		    progress = CASE WHEN $2 IN ('FAILED', 'CANCELED') THEN 0 ELSE progress END,
		    updated_at = now()
		WHERE id = $1`
	tag, err := q.pool.Exec(ctx, stmt, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("catalog: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProgress is the high-frequency, best-effort write path; callers
// should route it through the DB-writer pool rather than calling it inline.
func (q *Queries) UpdateProgress(ctx context.Context, id string, progress int) error {
	const stmt = `UPDATE artifacts SET progress = $2, updated_at = now() WHERE id = $1`
	_, err := q.pool.Exec(ctx, stmt, id, progress)
	if err != nil {
		return fmt.Errorf("catalog: update progress: %w", err)
	}
	return nil
}

// UpdateSizeBytes backfills size_bytes for a row created without it (e.g.
// an artifact streamed before its first GetMetadata round trip).
func (q *Queries) UpdateSizeBytes(ctx context.Context, id string, sizeBytes int64) error {
	const stmt = `UPDATE artifacts SET size_bytes = $2, updated_at = now() WHERE id = $1`
	_, err := q.pool.Exec(ctx, stmt, id, sizeBytes)
	if err != nil {
		return fmt.Errorf("catalog: update size bytes: %w", err)
	}
	return nil
}

// CompleteArtifact performs the terminal COMPLETED write with all derived
// references set atomically.
func (q *Queries) CompleteArtifact(ctx context.Context, id string, fields CompletionFields) error {
	const stmt = `
		UPDATE artifacts
		SET status = $2, progress = 100, error = NULL,
		    remote_file_id = $3, remote_folder_id = $4,
		    thumbnail_ref = NULLIF($5, ''), preview_ref = NULLIF($6, ''),
		    duration_seconds = $7, size_bytes = $8, mime_type = COALESCE(NULLIF($9, ''), mime_type),
		    updated_at = now()
		WHERE id = $1`
	tag, err := q.pool.Exec(ctx, stmt, id, StatusCompleted,
		fields.RemoteFileID, fields.RemoteFolderID,
		fields.ThumbnailRef, fields.PreviewRef,
		fields.DurationSeconds, fields.SizeBytes, fields.MimeType,
	)
	if err != nil {
		return fmt.Errorf("catalog: complete artifact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompletionFields bundles the fields CompleteArtifact writes in one
// statement once transcoding and derived-asset generation finish.
type CompletionFields struct {
	RemoteFileID    string
	RemoteFolderID  string
	ThumbnailRef    string
	PreviewRef      string
	DurationSeconds float64
	SizeBytes       int64
	MimeType        string
}

// RenameArtifact updates the display title only; the caller is responsible
// for renaming the remote folder/file first.
func (q *Queries) RenameArtifact(ctx context.Context, id, newTitle string) error {
	const stmt = `UPDATE artifacts SET title = $2, updated_at = now() WHERE id = $1`
	tag, err := q.pool.Exec(ctx, stmt, id, newTitle)
	if err != nil {
		return fmt.Errorf("catalog: rename artifact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteArtifact removes the row outright (call after the remote
// file/folder has been deleted via the store adapter).
func (q *Queries) DeleteArtifact(ctx context.Context, id string) error {
	tag, err := q.pool.Exec(ctx, `DELETE FROM artifacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete artifact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListProcessing returns every row currently in PROCESSING, used by
// startup recovery to flip them to FAILED("interrupted by restart").
func (q *Queries) ListProcessing(ctx context.Context) ([]*Artifact, error) {
	rows, err := q.pool.Query(ctx, `SELECT id FROM artifacts WHERE status = $1`, StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("catalog: list processing: %w", err)
	}
	defer rows.Close()

	var out []*Artifact
	for rows.Next() {
		a := &Artifact{Status: StatusProcessing}
		if err := rows.Scan(&a.ID); err != nil {
			return nil, fmt.Errorf("catalog: scan processing: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListByHierarchyPath returns every row of the given kind exactly matching a path,
// used by reconciliation Phase A's purge and Phase B/D's diff base set.
func (q *Queries) ListByHierarchyPath(ctx context.Context, owner, hierarchyPath string, kind Kind) ([]*Artifact, error) {
	const stmt = `
		SELECT id, owner, kind, title, hierarchy_path, status, progress,
		       COALESCE(remote_file_id, ''), COALESCE(remote_folder_id, '')
		FROM artifacts
		WHERE owner = $1 AND hierarchy_path = $2 AND kind = $3`

	rows, err := q.pool.Query(ctx, stmt, owner, hierarchyPath, kind)
	if err != nil {
		return nil, fmt.Errorf("catalog: list by hierarchy path: %w", err)
	}
	defer rows.Close()

	var out []*Artifact
	for rows.Next() {
		a := &Artifact{}
		if err := rows.Scan(&a.ID, &a.Owner, &a.Kind, &a.Title, &a.HierarchyPath, &a.Status, &a.Progress,
			&a.RemoteFileID, &a.RemoteFolderID); err != nil {
			return nil, fmt.Errorf("catalog: scan hierarchy row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteByHierarchyPath purges every row of the given kind under an exact path (Phase A).
func (q *Queries) DeleteByHierarchyPath(ctx context.Context, owner, hierarchyPath string, kind Kind) (int, error) {
	tag, err := q.pool.Exec(ctx,
		`DELETE FROM artifacts WHERE owner = $1 AND hierarchy_path = $2 AND kind = $3`,
		owner, hierarchyPath, kind,
	)
	if err != nil {
		return 0, fmt.Errorf("catalog: delete by hierarchy path: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ImportArtifact inserts an already-COMPLETED row discovered by
// reconciliation Phase C/D.
func (q *Queries) ImportArtifact(ctx context.Context, a *Artifact) (string, error) {
	const stmt = `
		INSERT INTO artifacts (
			owner, kind, title, hierarchy_path, status, progress,
			remote_file_id, remote_folder_id, thumbnail_ref, preview_ref,
			duration_seconds, size_bytes, mime_type
		) VALUES ($1, $2, $3, $4, $5, 100, $6, $7, NULLIF($8,''), NULLIF($9,''), $10, $11, $12)
		RETURNING id`

	var id string
	err := q.pool.QueryRow(ctx, stmt,
		a.Owner, a.Kind, a.Title, a.HierarchyPath, StatusCompleted,
		nullableID(a.RemoteFileID), nullableID(a.RemoteFolderID),
		a.ThumbnailRef, a.PreviewRef, a.DurationSeconds, a.SizeBytes, a.MimeType,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("catalog: import artifact: %w", err)
	}
	return id, nil
}

func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// Scope identifies one owner/hierarchy-path reconciliation unit.
type Scope struct {
	Owner         string
	HierarchyPath string
}

// DistinctScopes returns every distinct (owner, hierarchy_path) pair
// currently represented in the catalog, the set cmd/reconcile walks each
// run. Chapter and organization naming live with an external collaborator,
// so this reconciles exactly the scopes the catalog has already seen rows
// for rather than enumerating an external schema.
func (q *Queries) DistinctScopes(ctx context.Context) ([]Scope, error) {
	rows, err := q.pool.Query(ctx, `SELECT DISTINCT owner, hierarchy_path FROM artifacts`)
	if err != nil {
		return nil, fmt.Errorf("catalog: distinct scopes: %w", err)
	}
	defer rows.Close()

	var out []Scope
	for rows.Next() {
		var s Scope
		if err := rows.Scan(&s.Owner, &s.HierarchyPath); err != nil {
			return nil, fmt.Errorf("catalog: scan scope: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Ping is used by readiness checks; kept separate from the pool so callers
// don't need to import pgxpool themselves.
func (q *Queries) Ping(ctx context.Context) error {
	return q.pool.Ping(ctx)
}
