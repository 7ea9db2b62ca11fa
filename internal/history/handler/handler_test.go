package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rostertrail/internal/history"
	"rostertrail/internal/history/query"
	"rostertrail/internal/history/store/memory"
	"rostertrail/internal/platform/middleware"
	"rostertrail/internal/snapshot"
	id "rostertrail/pkg/domain"
)

// stubValidator maps literal bearer tokens to claims.
type stubValidator struct {
	tokens map[string]*middleware.TokenClaims
}

func (v *stubValidator) ValidateToken(token string) (*middleware.TokenClaims, error) {
	if claims, ok := v.tokens[token]; ok {
		return claims, nil
	}
	return nil, errors.New("unknown token")
}

type fixture struct {
	router     http.Handler
	auditStore *memory.AuditStore
	owner      id.ActorID
	admin      id.ActorID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	owner := id.ActorID(uuid.New())
	admin := id.ActorID(uuid.New())

	validator := &stubValidator{tokens: map[string]*middleware.TokenClaims{
		"owner-token": {Subject: owner.String(), Role: "owner"},
		"admin-token": {Subject: admin.String(), Role: "admin"},
	}}

	auditStore := memory.NewAuditStore()
	querier := query.New(auditStore, memory.NewPhotoStore(), history.DefaultPolicy(), slog.New(slog.DiscardHandler), nil)

	h := New(querier, slog.New(slog.DiscardHandler), validator)
	r := chi.NewRouter()
	h.Register(r)

	return &fixture{router: r, auditStore: auditStore, owner: owner, admin: admin}
}

func (f *fixture) seedEntry(t *testing.T, actor id.ActorID, changed []string, oldSnap, newSnap *snapshot.FieldMap) {
	t.Helper()
	err := f.auditStore.Append(context.Background(), &history.AuditEntry{
		ID:            id.NewEntryID(),
		ActorID:       actor,
		EntityType:    history.EntityProfile,
		EntityID:      "profile-1",
		Action:        history.ActionUpdate,
		OldSnapshot:   oldSnap,
		NewSnapshot:   newSnap,
		ChangedFields: changed,
		NetworkOrigin: "203.0.113.7",
		ClientAgent:   "Firefox 128.0 (Linux)",
		CreatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func (f *fixture) get(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestOwnHistory_RequiresAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/v1/history", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.get(t, "/v1/history", "bogus")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOwnHistory_ReturnsRedactedPage(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, f.owner, []string{"email"},
		snapshot.FieldMapOf("email", "jane.doe@example.com"),
		snapshot.FieldMapOf("email", "jane.d@example.org"))

	rec := f.get(t, "/v1/history", "owner-token")
	require.Equal(t, http.StatusOK, rec.Code)

	var page query.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.TotalCount)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "changed email", page.Entries[0].Summary)
	assert.Empty(t, page.Entries[0].NetworkOrigin)

	require.Len(t, page.Entries[0].Changes, 1)
	old, err := json.Marshal(page.Entries[0].Changes[0].Old)
	require.NoError(t, err)
	assert.JSONEq(t, `"ja******@example.com"`, string(old))
}

func TestOwnHistory_RejectsBadPaging(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/v1/history?page=0", "owner-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.get(t, "/v1/history?page_size=abc", "owner-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOwnHistory_RejectsUnknownEntityType(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/v1/history?entity_type=competition", "owner-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminHistory_RequiresAdminPrivilege(t *testing.T) {
	f := newFixture(t)
	path := "/v1/admin/users/" + f.owner.String() + "/history"

	rec := f.get(t, path, "owner-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.get(t, path, "admin-token")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminHistory_ShowsProvenanceAndRawValues(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, f.owner, []string{"role"},
		snapshot.FieldMapOf("role", "athlete"),
		snapshot.FieldMapOf("role", "coach"))

	rec := f.get(t, "/v1/admin/users/"+f.owner.String()+"/history", "admin-token")
	require.Equal(t, http.StatusOK, rec.Code)

	var page query.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "203.0.113.7", page.Entries[0].NetworkOrigin)
	assert.Equal(t, "changed role", page.Entries[0].Summary)
	require.Len(t, page.Entries[0].Changes, 1)
}

func TestAdminHistory_RejectsMalformedUserID(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/v1/admin/users/not-a-uuid/history", "admin-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOwnPhotoHistory_ReturnsPage(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/v1/history/photos", "owner-token")
	require.Equal(t, http.StatusOK, rec.Code)

	var page query.PhotoPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Zero(t, page.TotalCount)
}
