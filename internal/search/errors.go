package search

import "errors"

// Sentinel errors classifying every failure the service surfaces. Callers
// wrap these with fmt.Errorf("%w: ...") to attach detail and the API layer
// maps them to status codes with errors.Is; nothing propagates to a client
// unclassified.
var (
	// ErrInvalidInput covers malformed URLs, out-of-range depth values and
	// too-short queries. No side effects have occurred when it is returned.
	ErrInvalidInput = errors.New("invalid input")

	// ErrResolutionFailure means the submitted hostname did not resolve
	// (or resolution timed out). It is an input error, not an
	// infrastructure error: the submitted URL is the problem, not us.
	ErrResolutionFailure = errors.New("hostname resolution failed")

	// ErrForbiddenNetwork is the SSRF policy violation: the URL resolved
	// into a reserved or internal network range.
	ErrForbiddenNetwork = errors.New("forbidden network")

	// ErrNotFound signals an unknown job ID on the read path.
	ErrNotFound = errors.New("job not found")

	// ErrQueueUnavailable means the broker push failed. The job record has
	// already been transitioned to Failed when this is returned, so the
	// persisted state never disagrees with what the caller is told.
	ErrQueueUnavailable = errors.New("ingestion queue unavailable")
)
