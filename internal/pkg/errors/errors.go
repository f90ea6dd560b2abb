package errors

import "errors"

var (
	// ErrConnection marks a retryable graph-store connectivity failure.
	ErrConnection = errors.New("graph store connection failed")
	// ErrConnectionExhausted is returned once every reconnect attempt has been spent.
	// It is fatal for the current cycle; prior graph state is untouched.
	ErrConnectionExhausted = errors.New("graph store connection attempts exhausted")
	// ErrUnsupportedFormat marks a corpus file whose extension has no extractor.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrLoadFailure marks a file that could not be read or extracted.
	ErrLoadFailure = errors.New("document load failed")
	// ErrEmbeddingProvider marks an embedding call that failed after the
	// provider client's own retries.
	ErrEmbeddingProvider = errors.New("embedding provider failed")
	// ErrGraphWrite marks a failed chunk replacement for a single source.
	ErrGraphWrite = errors.New("graph write failed")
)
