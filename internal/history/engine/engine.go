// Package engine bundles the history services behind one facade. CRUD
// collaborators hold a single *Engine instead of three service references;
// the HTTP layer consumes only the read side.
package engine

import (
	"context"

	"rostertrail/internal/history"
	"rostertrail/internal/history/phototrack"
	"rostertrail/internal/history/query"
	"rostertrail/internal/history/recorder"
	id "rostertrail/pkg/domain"
)

// Engine is the in-process entry point of the history subsystem.
type Engine struct {
	recorder *recorder.Service
	photos   *phototrack.Tracker
	queries  *query.Service
}

// New bundles the constructed services.
func New(rec *recorder.Service, photos *phototrack.Tracker, queries *query.Service) *Engine {
	return &Engine{recorder: rec, photos: photos, queries: queries}
}

// RecordChange audits one primary mutation. Called by every CRUD write path
// after its mutation commits; ignoring the result is supported.
func (e *Engine) RecordChange(ctx context.Context, req recorder.RecordRequest) (bool, error) {
	return e.recorder.Record(ctx, req)
}

// RecordPhotoChange tracks one binary-asset replacement. Called by the
// photo-upload path after the binary is stored.
func (e *Engine) RecordPhotoChange(ctx context.Context, change phototrack.PhotoChange) (phototrack.PhotoResult, error) {
	return e.photos.RecordPhotoChange(ctx, change)
}

// Query returns one redacted page of an actor's audit history.
func (e *Engine) Query(ctx context.Context, req query.Request) (query.Page, error) {
	return e.queries.Query(ctx, req)
}

// PhotoHistory returns one page of an actor's photo history.
func (e *Engine) PhotoHistory(ctx context.Context, actorID id.ActorID, page, pageSize int, priv history.Privilege) (query.PhotoPage, error) {
	return e.queries.PhotoHistory(ctx, actorID, page, pageSize, priv)
}
