package models

import "errors"

// Sentinel errors for cross-layer failure classification.
var (
	// ErrStorageUnavailable marks a retryable backing-store failure.
	// Batches fail atomically when a store returns it.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrAnnotatorUnavailable marks systemic NLP-service unavailability,
	// as opposed to a per-item annotation failure.
	ErrAnnotatorUnavailable = errors.New("annotator unavailable")

	// ErrUnknownInstrument is returned by retrieval paths that require a
	// known instrument filter; fusion reads treat it as an empty result.
	ErrUnknownInstrument = errors.New("unknown instrument")
)
