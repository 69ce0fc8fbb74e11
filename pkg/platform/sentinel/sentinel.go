package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, resolvers and engine adapters return
// these (optionally wrapped) so services can translate them into domain errors:
// - ErrNotFound: image or record does not exist
// - ErrConflict: record already exists for the key
// - ErrTooLarge: object exceeds the configured read limit
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrTooLarge    = errors.New("too large")
	ErrUnavailable = errors.New("unavailable")
)
