//go:build integration

package phototrack_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"rostertrail/internal/history"
	"rostertrail/internal/history/phototrack"
	"rostertrail/internal/history/store/memory"
	id "rostertrail/pkg/domain"
	"rostertrail/pkg/testutil/containers"
)

type RedisHashCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *phototrack.RedisHashCache
}

func TestRedisHashCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisHashCacheSuite))
}

func (s *RedisHashCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = phototrack.NewRedisHashCache(s.redis.Client)
}

func (s *RedisHashCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisHashCacheSuite) TestSetAndGetHash() {
	ctx := context.Background()
	actor := id.ActorID(uuid.New())

	s.Require().NoError(s.cache.SetHash(ctx, actor, history.PhotoKindProfile, "abc123"))

	hash, err := s.cache.GetHash(ctx, actor, history.PhotoKindProfile)
	s.Require().NoError(err)
	s.Equal("abc123", hash)
}

func (s *RedisHashCacheSuite) TestGetHashMissReturnsEmpty() {
	hash, err := s.cache.GetHash(context.Background(), id.ActorID(uuid.New()), history.PhotoKindProfile)
	s.Require().NoError(err)
	s.Empty(hash)
}

func (s *RedisHashCacheSuite) TestKindsAreIsolated() {
	ctx := context.Background()
	actor := id.ActorID(uuid.New())

	s.Require().NoError(s.cache.SetHash(ctx, actor, history.PhotoKindProfile, "profile-hash"))

	hash, err := s.cache.GetHash(ctx, actor, history.PhotoKindIdentity)
	s.Require().NoError(err)
	s.Empty(hash)
}

func (s *RedisHashCacheSuite) TestTrackerDedupsThroughRedis() {
	ctx := context.Background()
	actor := id.ActorID(uuid.New())
	photoStore := memory.NewPhotoStore()
	tracker := phototrack.New(photoStore, s.cache, nil, nil, nil)

	first := phototrack.PhotoChange{
		ActorID:     actor,
		Kind:        history.PhotoKindProfile,
		NewAssetRef: "assets/v1.jpg",
		Data:        []byte("jpeg bytes"),
		FileName:    "portrait.jpg",
		MimeType:    "image/jpeg",
	}
	res, err := tracker.RecordPhotoChange(ctx, first)
	s.Require().NoError(err)
	s.True(res.Written)

	repeat := first
	repeat.OldAssetRef = first.NewAssetRef
	repeat.NewAssetRef = "assets/v2.jpg"
	res, err = tracker.RecordPhotoChange(ctx, repeat)
	s.Require().NoError(err)
	s.False(res.Written)

	// The write-through hash is what served the dedup.
	hash, err := s.cache.GetHash(ctx, actor, history.PhotoKindProfile)
	s.Require().NoError(err)
	s.Equal(phototrack.ContentHash(first.Data), hash)
}
