package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-grade-workflow/pkg/errors"
)

type cachedResult struct {
	StudentID string `json:"studentId"`
	Total     int    `json:"total"`
}

func TestCacheRepositoryGetSet(t *testing.T) {
	client := newFakeRedis()
	repo := NewCacheRepository(client, nil)
	ctx := context.Background()

	var out cachedResult
	err := repo.Get(ctx, "workflow:result:class-10a:stu-1", &out)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))

	require.NoError(t, repo.Set(ctx, "workflow:result:class-10a:stu-1", cachedResult{StudentID: "stu-1", Total: 180}, time.Minute))
	assert.Equal(t, time.Minute, client.ttls["workflow:result:class-10a:stu-1"])

	require.NoError(t, repo.Get(ctx, "workflow:result:class-10a:stu-1", &out))
	assert.Equal(t, cachedResult{StudentID: "stu-1", Total: 180}, out)
}

func TestCacheRepositoryDropsUndecodableEntries(t *testing.T) {
	client := newFakeRedis()
	client.data["workflow:result:class-10a:stu-1"] = "{"
	repo := NewCacheRepository(client, nil)

	var out cachedResult
	err := repo.Get(context.Background(), "workflow:result:class-10a:stu-1", &out)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.Equal(t, []string{"workflow:result:class-10a:stu-1"}, client.deleted)
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var out cachedResult
	assert.True(t, errors.Is(repo.Get(ctx, "k", &out), appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(ctx, "k", out, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "k*"))
}
