package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and external-system clients
// return these (optionally wrapped) so services can translate them into domain
// errors without importing store packages.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in the store
// - ErrConflict: conditional write lost (e.g. ban attributes already set)
// - ErrInvalidState: entity in the wrong state for the requested operation
// - ErrUnavailable: store or collaborator temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
