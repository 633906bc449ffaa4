// Package idgen generates the opaque string identifiers used by every
// aggregate root in the core (PaVerification, ReconciliationSummary,
// SyncStatus, …). IDs are never interpreted — they are only ever compared
// for equality or used as an opaque lookup key, per the core's convention
// of treating identifiers as opaque strings end to end.
package idgen

import "github.com/google/uuid"

// New returns a fresh opaque identifier.
func New() string {
	return uuid.NewString()
}
