package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: record does not exist in the store
//   - ErrConflict: a compare-and-swap guard did not hold (concurrent writer)
//   - ErrDuplicate: a uniqueness constraint rejected the write
//   - ErrInvalidState: record is in the wrong state for the operation
//     (for pools: already sealed)
//   - ErrCapacity: the record is full and accepts no more entries
//   - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrDuplicate    = errors.New("duplicate")
	ErrInvalidState = errors.New("invalid state")
	ErrCapacity     = errors.New("capacity exceeded")
	ErrUnavailable  = errors.New("unavailable")
)
