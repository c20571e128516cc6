package models

import "errors"

// Error taxonomy shared across the content pipeline. Components wrap these
// with %w and callers classify with errors.Is.
var (
	// ErrStorageWrite indicates a required storage tier write failed.
	// In remote mode a failed remote write is fatal even if the local
	// write succeeded, so the tiers never silently diverge.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrUnsupportedOperation indicates the operation is not available in
	// the current storage mode (e.g. presigning without remote storage).
	ErrUnsupportedOperation = errors.New("operation not supported in current storage mode")

	// ErrEmbedding indicates the embedding provider failed after retries.
	ErrEmbedding = errors.New("embedding service failed")

	// ErrIngestInProgress is returned when an ingestion run is already
	// active. The caller should retry once the in-flight run completes.
	ErrIngestInProgress = errors.New("ingestion already in progress")

	// ErrModelUnavailable indicates the language model could not be
	// reached after exhausting retries.
	ErrModelUnavailable = errors.New("model service unavailable")

	// ErrPersistence indicates a storage-layer fault in a durable store.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound indicates an unknown filename or user.
	ErrNotFound = errors.New("not found")
)
