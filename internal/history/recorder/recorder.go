// Package recorder captures before/after snapshots of primary mutations and
// appends immutable audit entries. Writes are best-effort: the primary
// mutation that triggered a recording must never fail because history could
// not be persisted.
package recorder

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rostertrail/internal/history"
	"rostertrail/internal/history/metrics"
	"rostertrail/internal/history/publisher"
	"rostertrail/internal/snapshot"
	id "rostertrail/pkg/domain"
	dErrors "rostertrail/pkg/domain-errors"
	"rostertrail/pkg/requestcontext"
)

// AuditStore is the slice of the store contract the recorder needs.
type AuditStore interface {
	Append(ctx context.Context, entry *history.AuditEntry) error
}

// Emitter forwards recorded entries to downstream consumers. Optional.
type Emitter interface {
	Emit(event publisher.Event)
}

// RecordRequest describes one primary mutation to be audited.
type RecordRequest struct {
	Action     history.Action
	EntityType history.EntityType
	EntityID   string
	ActorID    id.ActorID

	// OldSnapshot must be nil for CREATE, NewSnapshot nil for DELETE.
	OldSnapshot *snapshot.FieldMap
	NewSnapshot *snapshot.FieldMap
}

// Service is the change recorder. Construct once and share; it holds no
// per-request state.
type Service struct {
	store   AuditStore
	differ  *snapshot.Differ
	policy  history.Policy
	logger  *slog.Logger
	metrics *metrics.Metrics
	emitter Emitter
	tracer  trace.Tracer
}

// New constructs a recorder. emitter may be nil when no downstream fan-out
// is configured.
func New(store AuditStore, policy history.Policy, logger *slog.Logger, m *metrics.Metrics, emitter Emitter) *Service {
	return &Service{
		store:   store,
		differ:  snapshot.NewDiffer(policy.NonAuditableFields),
		policy:  policy,
		logger:  logger,
		metrics: m,
		emitter: emitter,
		tracer:  otel.Tracer("rostertrail/internal/history/recorder"),
	}
}

// Record computes the diff and appends one audit entry.
//
// The returned written flag reports whether an entry was persisted; false
// with a nil error means the update changed nothing. A store failure is
// returned for callers that care, but ignoring the result is intentional and
// supported: the failure has already been logged and counted, and the
// primary mutation stands either way.
func (s *Service) Record(ctx context.Context, req RecordRequest) (written bool, err error) {
	if err := s.validate(req); err != nil {
		return false, err
	}

	ctx, span := s.tracer.Start(ctx, "history.Record",
		trace.WithAttributes(
			attribute.String("history.action", string(req.Action)),
			attribute.String("history.entity_type", string(req.EntityType)),
		))
	defer span.End()

	oldSnap, newSnap := req.OldSnapshot, req.NewSnapshot
	switch req.Action {
	case history.ActionCreate:
		oldSnap = nil
	case history.ActionDelete:
		newSnap = nil
	}

	changes := s.differ.Diff(oldSnap, newSnap)
	if req.Action == history.ActionUpdate && len(changes) == 0 {
		// A save that altered nothing is a deliberate no-op; recording it
		// would only pollute the log.
		s.metrics.IncrementSuppressed()
		return false, nil
	}

	entry := &history.AuditEntry{
		ID:            id.NewEntryID(),
		ActorID:       req.ActorID,
		EntityType:    req.EntityType,
		EntityID:      req.EntityID,
		Action:        req.Action,
		OldSnapshot:   oldSnap,
		NewSnapshot:   newSnap,
		ChangedFields: snapshot.ChangedFields(changes),
		NetworkOrigin: requestcontext.ClientIP(ctx),
		ClientAgent:   requestcontext.UserAgent(ctx),
		CreatedAt:     requestcontext.Now(ctx),
	}

	if err := s.store.Append(ctx, entry); err != nil {
		s.metrics.IncrementDropped()
		if s.logger != nil {
			s.logger.WarnContext(ctx, "audit write failed, primary mutation unaffected",
				"error", err,
				"actor_id", req.ActorID.String(),
				"entity_type", string(req.EntityType),
				"entity_id", req.EntityID,
				"action", string(req.Action),
				"request_id", requestcontext.RequestID(ctx),
				"log_type", "audit",
			)
		}
		return false, dErrors.Wrap(dErrors.CodeUnavailable, "audit write failed", err)
	}

	s.metrics.IncrementWritten(string(req.Action), string(req.EntityType))

	if s.emitter != nil {
		s.emitter.Emit(publisher.Event{
			ID:            entry.ID.String(),
			Kind:          "audit",
			ActorID:       entry.ActorID.String(),
			EntityType:    string(entry.EntityType),
			EntityID:      entry.EntityID,
			Action:        string(entry.Action),
			ChangedFields: entry.ChangedFields,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return true, nil
}

// validate rejects malformed requests before any I/O. Unknown enum members
// are programming errors at the call site, not data to be stored.
func (s *Service) validate(req RecordRequest) error {
	if !req.Action.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown action")
	}
	if !s.policy.KnownEntityType(req.EntityType) {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown entity type")
	}
	if req.ActorID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "actor id is required")
	}
	if req.EntityID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "entity id is required")
	}
	switch req.Action {
	case history.ActionCreate:
		if req.NewSnapshot == nil {
			return dErrors.New(dErrors.CodeInvalidInput, "create requires a new snapshot")
		}
	case history.ActionDelete:
		if req.OldSnapshot == nil {
			return dErrors.New(dErrors.CodeInvalidInput, "delete requires an old snapshot")
		}
	}
	return nil
}
