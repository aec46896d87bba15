package state

import "errors"

// Error kinds. Operations wrap one of these with detail, so callers
// classify failures with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrCapacityExceeded   = errors.New("capacity exceeded")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrCommitmentMismatch = errors.New("commitment mismatch")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrOverflow           = errors.New("overflow")
)

// kinds lists the error kinds in match order.
var kinds = []error{
	ErrNotFound,
	ErrCapacityExceeded,
	ErrInvalidTransition,
	ErrCommitmentMismatch,
	ErrUnauthorized,
	ErrOverflow,
}

// Kind returns the error kind wrapped by err, or nil if err carries none.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}

	return nil
}
