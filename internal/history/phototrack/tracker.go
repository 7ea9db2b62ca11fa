// Package phototrack records binary-asset replacements as immutable photo
// history entries. Unlike the field-level recorder it dedups on content
// hash: re-uploading byte-identical content is an idempotent no-op, because
// the audited "value" is an opaque binary, not structured data.
package phototrack

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"

	"rostertrail/internal/history"
	"rostertrail/internal/history/metrics"
	"rostertrail/internal/history/publisher"
	id "rostertrail/pkg/domain"
	dErrors "rostertrail/pkg/domain-errors"
	"rostertrail/pkg/platform/sentinel"
	"rostertrail/pkg/requestcontext"
)

// PhotoStore is the slice of the store contract the tracker needs.
type PhotoStore interface {
	Append(ctx context.Context, entry *history.PhotoHistoryEntry) error
	Latest(ctx context.Context, actorID id.ActorID, kind history.PhotoKind) (*history.PhotoHistoryEntry, error)
}

// HashCache caches the latest content hash per actor and kind so the hot
// dedup path can skip a store read. Optional; the tracker falls back to the
// store on miss or error.
type HashCache interface {
	GetHash(ctx context.Context, actorID id.ActorID, kind history.PhotoKind) (string, error)
	SetHash(ctx context.Context, actorID id.ActorID, kind history.PhotoKind, hash string) error
}

// Emitter forwards recorded entries to downstream consumers. Optional.
type Emitter interface {
	Emit(event publisher.Event)
}

// PhotoChange describes one completed binary upload to be tracked.
type PhotoChange struct {
	ActorID id.ActorID
	Kind    history.PhotoKind

	// OldAssetRef is empty on first upload.
	OldAssetRef string
	// NewAssetRef locates the binary the upload path already stored.
	NewAssetRef string

	Data     []byte
	FileName string
	MimeType string
	Reason   string
}

// PhotoResult reports whether an entry was written and, if so, which.
type PhotoResult struct {
	Written bool
	Entry   *history.PhotoHistoryEntry
}

// Tracker records photo replacements. Construct once and share.
type Tracker struct {
	store   PhotoStore
	cache   HashCache
	logger  *slog.Logger
	metrics *metrics.Metrics
	emitter Emitter
	tracer  trace.Tracer
}

// New constructs a tracker. cache and emitter may be nil.
func New(store PhotoStore, cache HashCache, logger *slog.Logger, m *metrics.Metrics, emitter Emitter) *Tracker {
	return &Tracker{
		store:   store,
		cache:   cache,
		logger:  logger,
		metrics: m,
		emitter: emitter,
		tracer:  otel.Tracer("rostertrail/internal/history/phototrack"),
	}
}

// ContentHash returns the hex BLAKE2b-256 digest of the photo bytes.
func ContentHash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RecordPhotoChange hashes the new bytes, dedups against the prior version
// and persists a photo history entry when the content actually changed.
//
// Like the change recorder, a store failure is returned but ignorable: the
// upload itself has already succeeded and stands.
func (t *Tracker) RecordPhotoChange(ctx context.Context, change PhotoChange) (PhotoResult, error) {
	if err := t.validate(change); err != nil {
		return PhotoResult{}, err
	}

	ctx, span := t.tracer.Start(ctx, "history.RecordPhotoChange",
		trace.WithAttributes(attribute.String("history.photo_kind", string(change.Kind))))
	defer span.End()

	hash := ContentHash(change.Data)

	if change.OldAssetRef != "" {
		prior, ok := t.priorHash(ctx, change.ActorID, change.Kind)
		if ok && prior == hash {
			t.metrics.IncrementPhotoDedup()
			return PhotoResult{Written: false}, nil
		}
	}

	entry := &history.PhotoHistoryEntry{
		ID:           id.NewEntryID(),
		ActorID:      change.ActorID,
		PhotoKind:    change.Kind,
		OldAssetRef:  change.OldAssetRef,
		NewAssetRef:  change.NewAssetRef,
		ContentHash:  hash,
		ByteSize:     int64(len(change.Data)),
		FileName:     change.FileName,
		MimeType:     change.MimeType,
		ChangeReason: change.Reason,
		CreatedAt:    requestcontext.Now(ctx),
	}

	if err := t.store.Append(ctx, entry); err != nil {
		t.metrics.IncrementDropped()
		if t.logger != nil {
			t.logger.WarnContext(ctx, "photo history write failed, upload unaffected",
				"error", err,
				"actor_id", change.ActorID.String(),
				"photo_kind", string(change.Kind),
				"request_id", requestcontext.RequestID(ctx),
				"log_type", "audit",
			)
		}
		return PhotoResult{}, dErrors.Wrap(dErrors.CodeUnavailable, "photo history write failed", err)
	}

	t.metrics.IncrementPhotoWrite()
	t.cacheHash(ctx, change.ActorID, change.Kind, hash)

	if t.emitter != nil {
		t.emitter.Emit(publisher.Event{
			ID:          entry.ID.String(),
			Kind:        "photo",
			ActorID:     entry.ActorID.String(),
			PhotoKind:   string(entry.PhotoKind),
			ContentHash: entry.ContentHash,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return PhotoResult{Written: true, Entry: entry}, nil
}

// priorHash resolves the hash of the previous version, preferring the cache.
func (t *Tracker) priorHash(ctx context.Context, actorID id.ActorID, kind history.PhotoKind) (string, bool) {
	if t.cache != nil {
		if hash, err := t.cache.GetHash(ctx, actorID, kind); err == nil && hash != "" {
			return hash, true
		}
	}

	latest, err := t.store.Latest(ctx, actorID, kind)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) && t.logger != nil {
			t.logger.WarnContext(ctx, "prior photo hash lookup failed",
				"error", err,
				"actor_id", actorID.String(),
				"photo_kind", string(kind),
			)
		}
		// No dedup evidence; treat as changed and record.
		return "", false
	}
	return latest.ContentHash, true
}

// cacheHash is write-through and best-effort.
func (t *Tracker) cacheHash(ctx context.Context, actorID id.ActorID, kind history.PhotoKind, hash string) {
	if t.cache == nil {
		return
	}
	if err := t.cache.SetHash(ctx, actorID, kind, hash); err != nil && t.logger != nil {
		t.logger.WarnContext(ctx, "photo hash cache update failed",
			"error", err,
			"actor_id", actorID.String(),
		)
	}
}

func (t *Tracker) validate(change PhotoChange) error {
	if change.ActorID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "actor id is required")
	}
	if !change.Kind.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown photo kind")
	}
	if len(change.Data) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "photo bytes are required")
	}
	if change.NewAssetRef == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "new asset ref is required")
	}
	return nil
}
