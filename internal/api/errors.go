package api

import (
	"errors"
	"fmt"
)

var (
	// ErrStreamUnavailable is surfaced when a fetch keeps failing after the
	// configured retry budget. It halts the owning subscription only.
	ErrStreamUnavailable = errors.New("stream unavailable after retries")

	// ErrUnknownEntry marks an entry record whose variant this client does
	// not understand. The walker logs and skips these; the protocol is still
	// evolving.
	ErrUnknownEntry = errors.New("unknown entry record variant")
)

// FetchError is a transient HTTP or transport failure for one fetch. The
// client retries these with exponential backoff before giving up.
type FetchError struct {
	URI    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching %s: status %d: %v", e.URI, e.Status, e.Err)
	}
	return fmt.Sprintf("fetching %s: %v", e.URI, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
