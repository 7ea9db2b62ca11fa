// Package query is the read path of the history engine: paginated, filtered
// retrieval with privilege-based redaction enforced at this boundary. Callers
// never see a raw stored value.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rostertrail/internal/history"
	"rostertrail/internal/history/metrics"
	"rostertrail/internal/history/redact"
	"rostertrail/internal/history/store"
	"rostertrail/internal/snapshot"
	id "rostertrail/pkg/domain"
	dErrors "rostertrail/pkg/domain-errors"
	"rostertrail/pkg/requestcontext"
)

// SystemOnlySummary marks entries whose visible change set is empty for the
// viewer. The UI suppresses these instead of rendering a blank line.
const SystemOnlySummary = "system change"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// AuditLister is the slice of the store contract the query service needs.
type AuditLister interface {
	List(ctx context.Context, filter store.AuditFilter) ([]history.AuditEntry, int, error)
}

// PhotoLister lists photo history pages.
type PhotoLister interface {
	List(ctx context.Context, actorID id.ActorID, offset, limit int) ([]history.PhotoHistoryEntry, int, error)
}

// Request describes one history page lookup.
type Request struct {
	ActorID  id.ActorID
	Page     int
	PageSize int

	// EntityType narrows the page to one record family; "" means all.
	EntityType history.EntityType

	Privilege history.Privilege
}

// FieldDiff is one redacted field-level change.
type FieldDiff struct {
	Field string         `json:"field"`
	Old   snapshot.Value `json:"old"`
	New   snapshot.Value `json:"new"`
}

// Entry is the viewer-facing projection of one audit entry.
type Entry struct {
	ID         string             `json:"id"`
	EntityType history.EntityType `json:"entity_type"`
	EntityID   string             `json:"entity_id"`
	Action     history.Action     `json:"action"`
	Summary    string             `json:"summary"`
	Changes    []FieldDiff        `json:"changes"`

	// SystemOnly is set when every changed field was filtered out for this
	// viewer.
	SystemOnly bool `json:"system_only"`

	// Provenance is disclosed to admin viewers only.
	NetworkOrigin string `json:"network_origin,omitempty"`
	ClientAgent   string `json:"client_agent,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Page is one page of redacted history.
type Page struct {
	Entries    []Entry `json:"entries"`
	TotalCount int     `json:"total_count"`
}

// PhotoPage is one page of photo history.
type PhotoPage struct {
	Entries    []history.PhotoHistoryEntry `json:"entries"`
	TotalCount int                         `json:"total_count"`
}

// Service serves redacted history pages. Construct once and share.
type Service struct {
	audit    AuditLister
	photos   PhotoLister
	policy   history.Policy
	redactor *redact.Redactor
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// New constructs a query service.
func New(audit AuditLister, photos PhotoLister, policy history.Policy, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		audit:    audit,
		photos:   photos,
		policy:   policy,
		redactor: redact.New(),
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer("rostertrail/internal/history/query"),
	}
}

// Query returns one page of the actor's audit history, newest first, with
// redaction applied per the viewer's privilege.
//
// A store failure degrades to an empty page with a nil error: the viewer
// sees an empty state, operators see the log line and the counter.
func (s *Service) Query(ctx context.Context, req Request) (Page, error) {
	if err := s.validate(req); err != nil {
		return Page{}, err
	}
	page, pageSize := normalizePaging(req.Page, req.PageSize)

	ctx, span := s.tracer.Start(ctx, "history.Query",
		trace.WithAttributes(
			attribute.String("history.privilege", string(req.Privilege)),
			attribute.Int("history.page", page),
		))
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.ObserveQueryLatency(time.Since(start)) }()

	entries, total, err := s.audit.List(ctx, store.AuditFilter{
		ActorID:    req.ActorID,
		EntityType: req.EntityType,
		Offset:     (page - 1) * pageSize,
		Limit:      pageSize,
	})
	if err != nil {
		s.degrade(ctx, "audit history read failed", err, req.ActorID)
		return Page{Entries: []Entry{}}, nil
	}

	out := Page{Entries: make([]Entry, 0, len(entries)), TotalCount: total}
	for i := range entries {
		out.Entries = append(out.Entries, s.project(&entries[i], req.Privilege))
	}
	return out, nil
}

// PhotoHistory returns one page of the actor's photo history, newest first.
// Photo entries carry no field-level values, so no redaction applies beyond
// the privilege check itself.
func (s *Service) PhotoHistory(ctx context.Context, actorID id.ActorID, pageNum, pageSize int, priv history.Privilege) (PhotoPage, error) {
	if actorID.IsNil() {
		return PhotoPage{}, dErrors.New(dErrors.CodeInvalidInput, "actor id is required")
	}
	if !priv.Valid() {
		return PhotoPage{}, dErrors.New(dErrors.CodeInvalidInput, "unknown viewer privilege")
	}
	page, size := normalizePaging(pageNum, pageSize)

	ctx, span := s.tracer.Start(ctx, "history.PhotoHistory")
	defer span.End()

	entries, total, err := s.photos.List(ctx, actorID, (page-1)*size, size)
	if err != nil {
		s.degrade(ctx, "photo history read failed", err, actorID)
		return PhotoPage{Entries: []history.PhotoHistoryEntry{}}, nil
	}
	return PhotoPage{Entries: entries, TotalCount: total}, nil
}

// project builds the viewer-facing entry: drops restricted fields, redacts
// the rest and synthesizes the summary.
func (s *Service) project(entry *history.AuditEntry, priv history.Privilege) Entry {
	out := Entry{
		ID:         entry.ID.String(),
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		Changes:    []FieldDiff{},
		CreatedAt:  entry.CreatedAt,
	}
	if priv == history.PrivilegeAdmin {
		out.NetworkOrigin = entry.NetworkOrigin
		out.ClientAgent = entry.ClientAgent
	}

	visible := make([]string, 0, len(entry.ChangedFields))
	for _, field := range entry.ChangedFields {
		if priv != history.PrivilegeAdmin && s.policy.OwnerRestricted(field) {
			continue
		}
		visible = append(visible, field)
		out.Changes = append(out.Changes, FieldDiff{
			Field: field,
			Old:   s.redactor.Redact(field, valueAt(entry.OldSnapshot, field), priv),
			New:   s.redactor.Redact(field, valueAt(entry.NewSnapshot, field), priv),
		})
	}

	if len(visible) == 0 {
		out.Summary = SystemOnlySummary
		out.SystemOnly = true
		return out
	}
	out.Summary = summarize(entry.Action, entry.EntityType, visible)
	return out
}

// summarize renders a one-line human-readable description of the change.
func summarize(action history.Action, et history.EntityType, fields []string) string {
	noun := strings.ReplaceAll(string(et), "-", " ")
	switch action {
	case history.ActionCreate:
		return "created " + noun
	case history.ActionDelete:
		return "deleted " + noun
	}

	if len(fields) > 3 {
		return fmt.Sprintf("changed %d %s fields", len(fields), noun)
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ReplaceAll(f, "_", " ")
	}
	return "changed " + strings.Join(names, ", ")
}

func valueAt(snap *snapshot.FieldMap, field string) snapshot.Value {
	if snap == nil {
		return snapshot.Absent()
	}
	v, ok := snap.Get(field)
	if !ok {
		return snapshot.Absent()
	}
	return v
}

func (s *Service) degrade(ctx context.Context, msg string, err error, actorID id.ActorID) {
	s.metrics.IncrementQueryFailure()
	if s.logger != nil {
		s.logger.ErrorContext(ctx, msg,
			"error", err,
			"actor_id", actorID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// validate rejects malformed requests before any I/O.
func (s *Service) validate(req Request) error {
	if req.ActorID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "actor id is required")
	}
	if !req.Privilege.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown viewer privilege")
	}
	if req.EntityType != "" && !s.policy.KnownEntityType(req.EntityType) {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown entity type")
	}
	if req.Page < 0 || req.PageSize < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "page and page size must be positive")
	}
	return nil
}

// normalizePaging applies defaults and caps. Zero values select the first
// page at the default size.
func normalizePaging(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case size < 1:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	return page, size
}
