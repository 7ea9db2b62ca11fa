// Package postgres persists history entries in PostgreSQL. The tables are
// append-only; this package deliberately contains no UPDATE or DELETE
// statements.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rostertrail/internal/history"
	"rostertrail/internal/history/store"
	"rostertrail/internal/snapshot"
	id "rostertrail/pkg/domain"
	"rostertrail/pkg/platform/sentinel"
	txcontext "rostertrail/pkg/platform/tx"
)

// AuditStore implements store.AuditStore on database/sql.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore creates a PostgreSQL audit store.
func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

type dbExecutor interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *AuditStore) execer(ctx context.Context) dbExecutor {
	// CRUD collaborators that want the history row committed with their
	// primary mutation pass their transaction through context.
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts one audit entry. The seq column is assigned by the database
// and written back to the entry.
func (s *AuditStore) Append(ctx context.Context, entry *history.AuditEntry) error {
	oldSnap, err := marshalSnapshot(entry.OldSnapshot)
	if err != nil {
		return fmt.Errorf("marshal old snapshot: %w", err)
	}
	newSnap, err := marshalSnapshot(entry.NewSnapshot)
	if err != nil {
		return fmt.Errorf("marshal new snapshot: %w", err)
	}

	query := `
		INSERT INTO audit_entries (
			id, actor_id, entity_type, entity_id, action,
			old_snapshot, new_snapshot, changed_fields,
			network_origin, client_agent, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq
	`
	err = s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.ActorID),
		string(entry.EntityType),
		entry.EntityID,
		string(entry.Action),
		oldSnap,
		newSnap,
		pq.Array(entry.ChangedFields),
		entry.NetworkOrigin,
		entry.ClientAgent,
		entry.CreatedAt,
	).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns one page of the actor's entries plus the filtered total.
func (s *AuditStore) List(ctx context.Context, filter store.AuditFilter) ([]history.AuditEntry, int, error) {
	countQuery := `
		SELECT COUNT(*)
		FROM audit_entries
		WHERE actor_id = $1
		  AND ($2 = '' OR entity_type = $2)
	`
	var total int
	err := s.db.QueryRowContext(ctx, countQuery,
		uuid.UUID(filter.ActorID), string(filter.EntityType),
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	query := `
		SELECT id, actor_id, entity_type, entity_id, action,
		       old_snapshot, new_snapshot, changed_fields,
		       network_origin, client_agent, created_at, seq
		FROM audit_entries
		WHERE actor_id = $1
		  AND ($2 = '' OR entity_type = $2)
		ORDER BY created_at DESC, seq DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := s.db.QueryContext(ctx, query,
		uuid.UUID(filter.ActorID), string(filter.EntityType),
		filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanAuditEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func scanAuditEntries(rows *sql.Rows) ([]history.AuditEntry, error) {
	var entries []history.AuditEntry

	for rows.Next() {
		var (
			entry         history.AuditEntry
			entryID       uuid.UUID
			actorID       uuid.UUID
			entityType    string
			action        string
			oldSnap       []byte
			newSnap       []byte
			changedFields pq.StringArray
		)

		err := rows.Scan(
			&entryID,
			&actorID,
			&entityType,
			&entry.EntityID,
			&action,
			&oldSnap,
			&newSnap,
			&changedFields,
			&entry.NetworkOrigin,
			&entry.ClientAgent,
			&entry.CreatedAt,
			&entry.Seq,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		entry.ID = id.EntryID(entryID)
		entry.ActorID = id.ActorID(actorID)
		entry.EntityType = history.EntityType(entityType)
		entry.Action = history.Action(action)
		entry.ChangedFields = []string(changedFields)

		if entry.OldSnapshot, err = unmarshalSnapshot(oldSnap); err != nil {
			return nil, fmt.Errorf("decode old snapshot: %w", err)
		}
		if entry.NewSnapshot, err = unmarshalSnapshot(newSnap); err != nil {
			return nil, fmt.Errorf("decode new snapshot: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func marshalSnapshot(m *snapshot.FieldMap) (any, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalSnapshot(data []byte) (*snapshot.FieldMap, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return snapshot.ParseFieldMap(data)
}

// PhotoStore implements store.PhotoStore on database/sql.
type PhotoStore struct {
	db *sql.DB
}

// NewPhotoStore creates a PostgreSQL photo history store.
func NewPhotoStore(db *sql.DB) *PhotoStore {
	return &PhotoStore{db: db}
}

func (s *PhotoStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts one photo history entry.
func (s *PhotoStore) Append(ctx context.Context, entry *history.PhotoHistoryEntry) error {
	query := `
		INSERT INTO photo_history (
			id, actor_id, photo_kind, old_asset_ref, new_asset_ref,
			content_hash, byte_size, file_name, mime_type, change_reason,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.ActorID),
		string(entry.PhotoKind),
		entry.OldAssetRef,
		entry.NewAssetRef,
		entry.ContentHash,
		entry.ByteSize,
		entry.FileName,
		entry.MimeType,
		entry.ChangeReason,
		entry.CreatedAt,
	).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("insert photo history entry: %w", err)
	}
	return nil
}

// Latest returns the most recent entry for an actor and kind, used for
// prior content-hash lookup.
func (s *PhotoStore) Latest(ctx context.Context, actorID id.ActorID, kind history.PhotoKind) (*history.PhotoHistoryEntry, error) {
	query := `
		SELECT id, actor_id, photo_kind, old_asset_ref, new_asset_ref,
		       content_hash, byte_size, file_name, mime_type, change_reason,
		       created_at, seq
		FROM photo_history
		WHERE actor_id = $1 AND photo_kind = $2
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(actorID), string(kind))
	entry, err := scanPhotoEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query latest photo entry: %w", err)
	}
	return entry, nil
}

// List returns one page of the actor's photo history plus the total.
func (s *PhotoStore) List(ctx context.Context, actorID id.ActorID, offset, limit int) ([]history.PhotoHistoryEntry, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM photo_history WHERE actor_id = $1`,
		uuid.UUID(actorID),
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count photo history: %w", err)
	}

	query := `
		SELECT id, actor_id, photo_kind, old_asset_ref, new_asset_ref,
		       content_hash, byte_size, file_name, mime_type, change_reason,
		       created_at, seq
		FROM photo_history
		WHERE actor_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(actorID), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query photo history: %w", err)
	}
	defer rows.Close()

	var entries []history.PhotoHistoryEntry
	for rows.Next() {
		entry, err := scanPhotoEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate photo history: %w", err)
	}
	return entries, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhotoEntry(row rowScanner) (*history.PhotoHistoryEntry, error) {
	var (
		entry     history.PhotoHistoryEntry
		entryID   uuid.UUID
		actorID   uuid.UUID
		photoKind string
	)
	err := row.Scan(
		&entryID,
		&actorID,
		&photoKind,
		&entry.OldAssetRef,
		&entry.NewAssetRef,
		&entry.ContentHash,
		&entry.ByteSize,
		&entry.FileName,
		&entry.MimeType,
		&entry.ChangeReason,
		&entry.CreatedAt,
		&entry.Seq,
	)
	if err != nil {
		return nil, err
	}
	entry.ID = id.EntryID(entryID)
	entry.ActorID = id.ActorID(actorID)
	entry.PhotoKind = history.PhotoKind(photoKind)
	return &entry, nil
}
