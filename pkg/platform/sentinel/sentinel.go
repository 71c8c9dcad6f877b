package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Ledger adapters and stores return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: no account/record exists at the requested key
// - ErrConflict: the key is already occupied
// - ErrInFlight: another request holds the key and has not finished
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrInFlight    = errors.New("in flight")
	ErrUnavailable = errors.New("unavailable")
)
