package scan

import "errors"

var (
	// ErrInvalidRequest rejects a malformed StartScan request. The run is
	// never created.
	ErrInvalidRequest = errors.New("invalid scan request")

	// ErrNotFound is returned for an unknown or evicted run id.
	ErrNotFound = errors.New("run not found")

	// ErrRunNotCancellable is returned when cancelling a run that already
	// reached a terminal status.
	ErrRunNotCancellable = errors.New("run already terminal")
)
