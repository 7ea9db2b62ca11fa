// Package domain holds shared identifier types. Distinct UUID wrappers keep
// actor and entry identifiers from being swapped at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "rostertrail/pkg/domain-errors"
)

// ActorID identifies the subject whose records are tracked. In this system
// the actor is also the authenticated user performing the write.
type ActorID uuid.UUID

// EntryID identifies a single history entry, assigned at write time.
type EntryID uuid.UUID

func (id ActorID) String() string { return uuid.UUID(id).String() }
func (id ActorID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id EntryID) String() string { return uuid.UUID(id).String() }
func (id EntryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewEntryID returns a fresh random entry identifier.
func NewEntryID() EntryID { return EntryID(uuid.New()) }

// ParseActorID validates and parses an actor ID from its string form.
// Empty strings and nil UUIDs are rejected: an actor must exist.
func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ActorID{}, err
	}
	return ActorID(u), nil
}

// ParseEntryID validates and parses an entry ID from its string form.
func ParseEntryID(s string) (EntryID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return EntryID{}, err
	}
	return EntryID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}
