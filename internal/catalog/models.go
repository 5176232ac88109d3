package catalog

import "time"

// Kind discriminates the media family of an Artifact.
type Kind string

const (
	KindVideo Kind = "video"
	KindPDF   Kind = "pdf"
	KindOther Kind = "other"
)

// Status is an Artifact's lifecycle state. Transitions follow
// PENDING -> PROCESSING -> (COMPLETED | FAILED | CANCELED); no transition
// leaves a terminal state except explicit deletion.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCanceled   Status = "CANCELED"
)

// Artifact is the unit tracked by the pipeline, a superset of video and pdf
// rows discriminated by Kind.
type Artifact struct {
	ID              string
	Owner           string
	Kind            Kind
	Title           string
	HierarchyPath   string
	Status          Status
	Progress        int
	Error           string
	RemoteFileID    string
	RemoteFolderID  string
	SizeBytes       int64
	MimeType        string
	DurationSeconds float64
	ThumbnailRef    string
	PreviewRef      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsTerminal reports whether Status is one that DeleteArtifact is still the
// only valid exit from.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// IsVideo reports whether the artifact carries video-kind derived assets.
func (a *Artifact) IsVideo() bool {
	return a.Kind == KindVideo
}

// ListFilter narrows ListArtifacts by scope and pagination.
type ListFilter struct {
	Owner        string
	Organization string
	Chapter      string
	Page         int
	PageSize     int
}

// ListResult is the paginated projection returned by ListArtifacts.
type ListResult struct {
	Results  []*Artifact
	Total    int
	Page     int
	PageSize int
}
