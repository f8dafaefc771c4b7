package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/timetable-ingest/pkg/errors"
)

func newBadgerRepo(t *testing.T) *BadgerCacheRepository {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	repo := NewBadgerCacheRepository(db, zap.NewNop())
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

type cachedValue struct {
	Count int    `json:"count"`
	Name  string `json:"name"`
}

func TestBadgerCacheRepositorySetGet(t *testing.T) {
	repo := newBadgerRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "timetable:doc:abc", cachedValue{Count: 3, Name: "高等数学"}, time.Minute))

	var got cachedValue
	require.NoError(t, repo.Get(ctx, "timetable:doc:abc", &got))
	assert.Equal(t, cachedValue{Count: 3, Name: "高等数学"}, got)
}

func TestBadgerCacheRepositoryMiss(t *testing.T) {
	repo := newBadgerRepo(t)

	var got cachedValue
	err := repo.Get(context.Background(), "timetable:doc:none", &got)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
}

func TestBadgerCacheRepositoryDeleteByPattern(t *testing.T) {
	repo := newBadgerRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "timetable:doc:a", cachedValue{Count: 1}, 0))
	require.NoError(t, repo.Set(ctx, "timetable:doc:b", cachedValue{Count: 2}, 0))
	require.NoError(t, repo.Set(ctx, "other:key", cachedValue{Count: 3}, 0))

	require.NoError(t, repo.DeleteByPattern(ctx, "timetable:doc:*"))

	var got cachedValue
	assert.ErrorIs(t, repo.Get(ctx, "timetable:doc:a", &got), appErrors.ErrCacheMiss)
	assert.ErrorIs(t, repo.Get(ctx, "timetable:doc:b", &got), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Get(ctx, "other:key", &got))
	assert.Equal(t, 3, got.Count)
}
