package apperror

import (
	"errors"
	"net/http"
)

type Error struct {
	Code       string
	Message    string
	StatusCode int
	Internal   error
	Retryable  bool // Whether the operation can be retried
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Internal
}

var (
	ErrNotFound = &Error{
		Code:       "not_found",
		Message:    "The requested resource was not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &Error{
		Code:       "bad_request",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrRateLimited = &Error{
		Code:       "rate_limited",
		Message:    "Too many requests. Please try again later",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrInternal = &Error{
		Code:       "internal_error",
		Message:    "An unexpected error occurred. Please try again later",
		StatusCode: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &Error{
		Code:       "service_unavailable",
		Message:    "Service temporarily unavailable. Please try again later",
		StatusCode: http.StatusServiceUnavailable,
	}

	// Upload/spool errors (C1)
	ErrFileTooLarge = &Error{
		Code:       "file_too_large",
		Message:    "The uploaded artifact exceeds the configured maximum size",
		StatusCode: http.StatusRequestEntityTooLarge,
	}

	ErrOutOfOrderChunk = &Error{
		Code:       "out_of_order_chunk",
		Message:    "Chunk index does not match the next expected chunk",
		StatusCode: http.StatusConflict,
	}

	ErrSpoolNotFound = &Error{
		Code:       "spool_not_found",
		Message:    "No upload session exists for this upload id",
		StatusCode: http.StatusNotFound,
	}

	ErrSpoolOwnerMismatch = &Error{
		Code:       "spool_owner_mismatch",
		Message:    "This upload id belongs to a different owner",
		StatusCode: http.StatusForbidden,
	}

	ErrUploadIncomplete = &Error{
		Code:       "upload_incomplete",
		Message:    "Upload cannot be completed until all chunks are received",
		StatusCode: http.StatusConflict,
	}

	ErrChecksumMismatch = &Error{
		Code:       "checksum_mismatch",
		Message:    "Assembled spool file checksum does not match the declared checksum",
		StatusCode: http.StatusUnprocessableEntity,
	}

	// Transcode errors (C2)
	ErrProcessingFailed = &Error{
		Code:       "processing_failed",
		Message:    "Transcode processing failed",
		StatusCode: http.StatusInternalServerError,
	}

	ErrUnsupportedMedia = &Error{
		Code:       "unsupported_media",
		Message:    "The input file is not a supported media container or codec",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrDurationExceeded = &Error{
		Code:       "duration_exceeded",
		Message:    "The input media exceeds the configured maximum duration",
		StatusCode: http.StatusUnprocessableEntity,
	}

	// Chat download errors (C3)
	ErrChannelUnavailable = &Error{
		Code:       "channel_unavailable",
		Message:    "The configured chat channel could not be reached",
		StatusCode: http.StatusBadGateway,
	}

	ErrDownloadCancelled = &Error{
		Code:       "download_cancelled",
		Message:    "The download was cancelled",
		StatusCode: http.StatusConflict,
	}

	// Object store errors (C4)
	ErrStorageDownloadFailed = &Error{
		Code:       "storage_download_failed",
		Message:    "Failed to download artifact from object store",
		StatusCode: http.StatusInternalServerError,
	}

	ErrStorageUploadFailed = &Error{
		Code:       "storage_upload_failed",
		Message:    "Failed to upload artifact to object store",
		StatusCode: http.StatusInternalServerError,
	}

	ErrHierarchySegmentEmpty = &Error{
		Code:       "hierarchy_segment_empty",
		Message:    "A hierarchy path segment is empty",
		StatusCode: http.StatusBadRequest,
	}

	ErrAmbiguousChild = &Error{
		Code:       "ambiguous_child",
		Message:    "More than one child with the same name exists in this folder",
		StatusCode: http.StatusConflict,
	}

	// Streaming errors (C5)
	ErrRangeNotSatisfiable = &Error{
		Code:       "range_not_satisfiable",
		Message:    "The requested byte range cannot be satisfied",
		StatusCode: http.StatusRequestedRangeNotSatisfiable,
	}

	// Reconciliation errors (C6)
	ErrReconcileAborted = &Error{
		Code:       "reconcile_aborted",
		Message:    "Reconciliation pass aborted before completion",
		StatusCode: http.StatusInternalServerError,
	}

	// Job errors
	ErrJobNotFound = &Error{
		Code:       "job_not_found",
		Message:    "Processing job not found",
		StatusCode: http.StatusNotFound,
	}

	ErrInvalidJobPayload = &Error{
		Code:       "invalid_job_payload",
		Message:    "Invalid job payload",
		StatusCode: http.StatusBadRequest,
	}
)

func New(code, message string, statusCode int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Wrap(err error, appErr *Error) *Error {
	return &Error{
		Code:       appErr.Code,
		Message:    appErr.Message,
		StatusCode: appErr.StatusCode,
		Internal:   err,
	}
}

func WrapWithMessage(err error, code, message string, statusCode int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   err,
	}
}

func Is(err error, target *Error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

func SafeMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ErrInternal.Message
}

func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal.Code
}

// IsRetryable returns whether the error indicates the operation can be retried
func IsRetryable(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	// By default, unknown errors are considered retryable
	return true
}

// WithRetryable creates a new error with the retryable flag set
func WithRetryable(err *Error, retryable bool) *Error {
	return &Error{
		Code:       err.Code,
		Message:    err.Message,
		StatusCode: err.StatusCode,
		Internal:   err.Internal,
		Retryable:  retryable,
	}
}
