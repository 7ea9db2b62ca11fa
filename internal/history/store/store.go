// Package store defines the persistence contracts of the history engine.
// Both entry families are append-only: implementations expose no update or
// delete operations, by construction.
package store

import (
	"context"

	"rostertrail/internal/history"
	id "rostertrail/pkg/domain"
)

// AuditFilter narrows an audit listing. ActorID is always required;
// EntityType is optional ("" means all families).
type AuditFilter struct {
	ActorID    id.ActorID
	EntityType history.EntityType
	Offset     int
	Limit      int
}

// AuditStore persists and lists audit entries.
type AuditStore interface {
	// Append persists one entry, assigning its insertion sequence. The
	// entry's ID and CreatedAt are set by the caller.
	Append(ctx context.Context, entry *history.AuditEntry) error

	// List returns one page of the actor's entries ordered by CreatedAt
	// descending (insertion order breaking ties), plus the total size of
	// the filtered set for page-count display.
	List(ctx context.Context, filter AuditFilter) ([]history.AuditEntry, int, error)
}

// PhotoStore persists and lists photo history entries.
type PhotoStore interface {
	// Append persists one entry, assigning its insertion sequence.
	Append(ctx context.Context, entry *history.PhotoHistoryEntry) error

	// Latest returns the most recent entry for an actor and photo kind, or
	// sentinel.ErrNotFound if the actor has no history for that kind. Used
	// for prior content-hash lookup.
	Latest(ctx context.Context, actorID id.ActorID, kind history.PhotoKind) (*history.PhotoHistoryEntry, error)

	// List returns one page of the actor's photo history, newest first,
	// plus the total count.
	List(ctx context.Context, actorID id.ActorID, offset, limit int) ([]history.PhotoHistoryEntry, int, error)
}
