// Package memory provides in-memory history stores for unit tests and local
// development.
package memory

import (
	"context"
	"sort"
	"sync"

	"rostertrail/internal/history"
	"rostertrail/internal/history/store"
	id "rostertrail/pkg/domain"
	"rostertrail/pkg/platform/sentinel"
)

// AuditStore keeps audit entries per actor behind a mutex. Entries are
// copied on the way in and out so callers cannot mutate persisted history.
type AuditStore struct {
	mu      sync.RWMutex
	seq     int64
	entries map[id.ActorID][]history.AuditEntry
}

// NewAuditStore returns an empty in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{entries: make(map[id.ActorID][]history.AuditEntry)}
}

// Clear drops all stored entries. Test helper.
func (s *AuditStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
	s.entries = make(map[id.ActorID][]history.AuditEntry)
}

func (s *AuditStore) Append(_ context.Context, entry *history.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	stored := *entry
	stored.Seq = s.seq
	stored.ChangedFields = append([]string(nil), entry.ChangedFields...)
	s.entries[entry.ActorID] = append(s.entries[entry.ActorID], stored)
	entry.Seq = stored.Seq
	return nil
}

func (s *AuditStore) List(_ context.Context, filter store.AuditFilter) ([]history.AuditEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []history.AuditEntry
	for _, e := range s.entries[filter.ActorID] {
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		filtered = append(filtered, e)
	}

	sortNewestFirst(filtered, func(e history.AuditEntry) (int64, int64) {
		return e.CreatedAt.UnixNano(), e.Seq
	})

	total := len(filtered)
	return paginate(filtered, filter.Offset, filter.Limit), total, nil
}

// PhotoStore keeps photo history entries per actor behind a mutex.
type PhotoStore struct {
	mu     sync.RWMutex
	seq    int64
	photos map[id.ActorID][]history.PhotoHistoryEntry
}

// NewPhotoStore returns an empty in-memory photo store.
func NewPhotoStore() *PhotoStore {
	return &PhotoStore{photos: make(map[id.ActorID][]history.PhotoHistoryEntry)}
}

// Clear drops all stored entries. Test helper.
func (s *PhotoStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
	s.photos = make(map[id.ActorID][]history.PhotoHistoryEntry)
}

func (s *PhotoStore) Append(_ context.Context, entry *history.PhotoHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	stored := *entry
	stored.Seq = s.seq
	s.photos[entry.ActorID] = append(s.photos[entry.ActorID], stored)
	entry.Seq = stored.Seq
	return nil
}

func (s *PhotoStore) Latest(_ context.Context, actorID id.ActorID, kind history.PhotoKind) (*history.PhotoHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *history.PhotoHistoryEntry
	for i := range s.photos[actorID] {
		e := s.photos[actorID][i]
		if e.PhotoKind != kind {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) ||
			(e.CreatedAt.Equal(latest.CreatedAt) && e.Seq > latest.Seq) {
			copied := e
			latest = &copied
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest, nil
}

func (s *PhotoStore) List(_ context.Context, actorID id.ActorID, offset, limit int) ([]history.PhotoHistoryEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := append([]history.PhotoHistoryEntry(nil), s.photos[actorID]...)
	sortNewestFirst(filtered, func(e history.PhotoHistoryEntry) (int64, int64) {
		return e.CreatedAt.UnixNano(), e.Seq
	})

	total := len(filtered)
	return paginate(filtered, offset, limit), total, nil
}

// sortNewestFirst orders by created-at descending, insertion sequence
// breaking ties.
func sortNewestFirst[T any](items []T, key func(T) (createdAt, seq int64)) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, si := key(items[i])
		cj, sj := key(items[j])
		if ci != cj {
			return ci > cj
		}
		return si > sj
	})
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 || offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out
}
