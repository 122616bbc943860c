package gamesync

import "errors"

// Write operations log every failure and return one of these wrapped. None of
// them leaves the aggregate modified: it only ever changes through echoed
// feed events.
var (
	// ErrDecode marks a remote snapshot that does not parse into the expected
	// record. The event is dropped.
	ErrDecode = errors.New("decode failed")
	// ErrWriteRejected marks a remote write that returned an error.
	ErrWriteRejected = errors.New("write rejected")
	// ErrStaleTarget marks an update whose target the pre-write existence
	// check reported missing. The write is skipped.
	ErrStaleTarget = errors.New("update target does not exist")
	// ErrValidation marks a request with a malformed or mismatched id or
	// foreign key. It is rejected before any I/O.
	ErrValidation = errors.New("validation failed")

	ErrTornDown = errors.New("coordinator torn down")
	ErrNotFound = errors.New("not found")
)
