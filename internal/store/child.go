package store

import "time"

// Child is a tagged-variant type making the "either a bare file in the
// folder, or a subfolder wrapping a single file plus derived assets" dual
// shape explicit, rather than relying on implicit folder-vs-file
// branching. Consumers must exhaustively handle both variants via Kind.
type ChildKind string

const (
	// ChildBare is a plain file directly inside the listed folder.
	ChildBare ChildKind = "bare"
	// ChildWrapped is a subfolder containing exactly one video plus known
	// companion names (thumbnail.jpg, preview.mp4).
	ChildWrapped ChildKind = "wrapped"
)

// Child is a single entry returned by ListChildren. Exactly one of the two
// shapes below is populated, selected by Kind.
type Child struct {
	Kind ChildKind

	// Common identification, valid for both variants.
	ID        string // Bare: the file id. Wrapped: the primary video's file id.
	Name      string
	Size      int64
	Mime      string
	CreatedAt time.Time

	// Wrapped-only fields.
	ContainerFolderID string // the wrapping subfolder's id
	ThumbnailID       string
	PreviewID         string
}

// IsWrapped reports whether this child is a subfolder-wrapped video.
func (c Child) IsWrapped() bool { return c.Kind == ChildWrapped }

// DerivedAssets returns (thumbnailID, previewID, ok): ok is false for Bare
// children, which never carry derived assets.
func (c Child) DerivedAssets() (thumbnailID, previewID string, ok bool) {
	if c.Kind != ChildWrapped {
		return "", "", false
	}
	return c.ThumbnailID, c.PreviewID, true
}
