package api

import "github.com/strategize/legacy360/internal/services"

// Store is the full persistence surface the router wires its services to.
// It composes the narrow per-service interfaces; both the in-memory store
// and the sqlite store satisfy it.
type Store interface {
	services.InviteStore
	services.InboxStore
	services.AggregationStore
	services.AuthStore

	ListAudit() []services.AuditEntry
}

var _ Store = (*memoryStore)(nil)
