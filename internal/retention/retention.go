// Package retention implements bounded retention for hot-store records. A
// background sweeper stands in for storage-layer TTL: it finds records whose
// retention lapsed, publishes each one to the deletion change stream, and
// only then deletes it. Publish-before-delete plus an idempotent archive
// consumer keeps the guarantee that a retention-governed record is always in
// the hot store, the archive, or both.
package retention

import (
	"encoding/json"
	"time"
)

// Cause tags why a record left the hot store. It is carried on the deletion
// event itself, so downstream consumers never infer intent from actor
// identity.
type Cause string

const (
	// CauseRetention: the record's bounded retention lapsed.
	CauseRetention Cause = "retention_expiry"
	// CauseManual: an operator or workflow removed the record explicitly.
	CauseManual Cause = "manual"
)

// DeletionEvent is one record leaving a hot store, published to the change
// stream before the delete happens.
type DeletionEvent struct {
	Entity    string          `json:"entity"`
	Key       string          `json:"key"`
	Cause     Cause           `json:"cause"`
	DeletedAt time.Time       `json:"deletedAt"`
	Record    json.RawMessage `json:"record"`
}

// Record is an expired hot-store record surfaced by a Source.
type Record struct {
	Key     string
	Payload json.RawMessage
}
