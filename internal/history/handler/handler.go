// Package handler exposes the history read API over HTTP. Write paths have
// no routes: entries are recorded in-process by the CRUD collaborators, and
// nothing here can update or delete an entry.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"rostertrail/internal/history"
	"rostertrail/internal/history/query"
	"rostertrail/internal/platform/middleware"
	id "rostertrail/pkg/domain"
	dErrors "rostertrail/pkg/domain-errors"
	"rostertrail/pkg/platform/httputil"
	"rostertrail/pkg/requestcontext"
)

// Querier defines the read operations the handler delegates to.
type Querier interface {
	Query(ctx context.Context, req query.Request) (query.Page, error)
	PhotoHistory(ctx context.Context, actorID id.ActorID, page, pageSize int, priv history.Privilege) (query.PhotoPage, error)
}

// Handler handles history endpoints.
type Handler struct {
	logger    *slog.Logger
	querier   Querier
	validator middleware.TokenValidator
}

// New creates a history Handler.
func New(querier Querier, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		querier:   querier,
		validator: validator,
	}
}

// Register mounts the history routes. Self-service routes read the actor
// from the token; admin routes read it from the path and require the admin
// privilege.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))

		r.Get("/v1/history", h.handleOwnHistory)
		r.Get("/v1/history/photos", h.handleOwnPhotoHistory)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.logger))
			r.Get("/v1/admin/users/{userID}/history", h.handleUserHistory)
			r.Get("/v1/admin/users/{userID}/history/photos", h.handleUserPhotoHistory)
		})
	})
}

// handleOwnHistory serves the "my history" view. The viewer's own privilege
// decides redaction, so admins browsing their own history see raw values.
func (h *Handler) handleOwnHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.serveHistory(w, r, requestcontext.ActorID(ctx), viewerPrivilege(ctx))
}

func (h *Handler) handleOwnPhotoHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.servePhotoHistory(w, r, requestcontext.ActorID(ctx), viewerPrivilege(ctx))
}

// handleUserHistory serves the administrative "user activity" view.
func (h *Handler) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	actorID, err := id.ParseActorID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.serveHistory(w, r, actorID, history.PrivilegeAdmin)
}

func (h *Handler) handleUserPhotoHistory(w http.ResponseWriter, r *http.Request) {
	actorID, err := id.ParseActorID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.servePhotoHistory(w, r, actorID, history.PrivilegeAdmin)
}

func (h *Handler) serveHistory(w http.ResponseWriter, r *http.Request, actorID id.ActorID, priv history.Privilege) {
	ctx := r.Context()

	page, pageSize, err := parsePaging(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.querier.Query(ctx, query.Request{
		ActorID:    actorID,
		Page:       page,
		PageSize:   pageSize,
		EntityType: history.EntityType(r.URL.Query().Get("entity_type")),
		Privilege:  priv,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "history query rejected",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) servePhotoHistory(w http.ResponseWriter, r *http.Request, actorID id.ActorID, priv history.Privilege) {
	ctx := r.Context()

	page, pageSize, err := parsePaging(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.querier.PhotoHistory(ctx, actorID, page, pageSize, priv)
	if err != nil {
		h.logger.WarnContext(ctx, "photo history query rejected",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// viewerPrivilege maps the token role onto a privilege, defaulting to owner
// for anything unrecognized so unknown roles never gain admin visibility.
func viewerPrivilege(ctx context.Context) history.Privilege {
	if requestcontext.Privilege(ctx) == string(history.PrivilegeAdmin) {
		return history.PrivilegeAdmin
	}
	return history.PrivilegeOwner
}

func parsePaging(r *http.Request) (page, pageSize int, err error) {
	page, err = positiveParam(r, "page")
	if err != nil {
		return 0, 0, err
	}
	pageSize, err = positiveParam(r, "page_size")
	if err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}

func positiveParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, dErrors.New(dErrors.CodeBadRequest, name+" must be a positive integer")
	}
	return n, nil
}
