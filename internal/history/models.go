// Package history defines the data model of the change/audit history engine:
// immutable audit entries for field-level mutations, photo history entries
// for binary-asset replacements, and the policy data that governs which
// fields are audited and disclosed.
package history

import (
	"time"

	id "rostertrail/pkg/domain"

	"rostertrail/internal/snapshot"
)

// Action classifies the primary mutation an audit entry describes.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Valid reports whether the action is a known enum member. Services validate
// this before any I/O; an unknown action is a programming error at the call
// site, not data to be stored.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// EntityType names a logical record family under audit.
type EntityType string

const (
	EntityProfile      EntityType = "profile"
	EntityCoachProfile EntityType = "coach-profile"
	EntityJudgeProfile EntityType = "judge-profile"
)

// Privilege is the caller's viewing role, determining how much of an entry
// is disclosed at read time.
type Privilege string

const (
	PrivilegeOwner Privilege = "owner"
	PrivilegeAdmin Privilege = "admin"
)

// Valid reports whether the privilege is a known enum member.
func (p Privilege) Valid() bool {
	return p == PrivilegeOwner || p == PrivilegeAdmin
}

// PhotoKind names the binary-asset families tracked per actor.
type PhotoKind string

const (
	PhotoKindProfile  PhotoKind = "profile-photo"
	PhotoKindIdentity PhotoKind = "identity-photo"
)

// Valid reports whether the photo kind is a known enum member.
func (k PhotoKind) Valid() bool {
	return k == PhotoKindProfile || k == PhotoKindIdentity
}

// AuditEntry is one immutable record of a field-level mutation. Entries are
// created exactly once when the primary mutation commits and are never
// updated or deleted by this subsystem.
type AuditEntry struct {
	ID         id.EntryID
	ActorID    id.ActorID
	EntityType EntityType
	EntityID   string
	Action     Action

	// OldSnapshot is nil for CREATE, NewSnapshot is nil for DELETE.
	OldSnapshot *snapshot.FieldMap
	NewSnapshot *snapshot.FieldMap

	// ChangedFields is computed once at write time and stored denormalized
	// for fast filtering and summary synthesis.
	ChangedFields []string

	// Provenance, visible only to admin viewers.
	NetworkOrigin string
	ClientAgent   string

	CreatedAt time.Time
	// Seq is the store-assigned insertion order, the tie-breaker when
	// CreatedAt collides. Display order is CreatedAt desc, Seq desc.
	Seq int64
}

// PhotoHistoryEntry is one immutable record of a binary-asset replacement,
// keyed by content hash so byte-identical re-uploads can be detected.
type PhotoHistoryEntry struct {
	ID        id.EntryID
	ActorID   id.ActorID
	PhotoKind PhotoKind

	// OldAssetRef is empty for the first upload of this kind.
	OldAssetRef string
	NewAssetRef string

	ContentHash string
	ByteSize    int64
	FileName    string
	MimeType    string

	// ChangeReason is an optional free-text annotation from the uploader.
	ChangeReason string

	CreatedAt time.Time
	Seq       int64
}
