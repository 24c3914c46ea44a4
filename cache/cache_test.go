package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HyxiaoGe/prompthub/types"
)

// setupCache creates a test version cache backed by miniredis.
func setupCache(t *testing.T, opts ...Option) (*VersionCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return NewVersionCache(client, opts...), mr
}

func publishedVersion(promptID, version, content string) *types.PromptVersion {
	return &types.PromptVersion{
		ID:       "pv-" + version,
		PromptID: promptID,
		Version:  version,
		Content:  content,
		Status:   types.VersionStatusPublished,
	}
}

func TestVersionCache_MissOnEmpty(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "p-1", "1.0.0")
	assert.False(t, ok)
}

func TestVersionCache_PutAndGet(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	c.Put(ctx, publishedVersion("p-1", "1.0.0", "v1 content"))

	got, ok := c.Get(ctx, "p-1", "1.0.0")
	require.True(t, ok)
	assert.Equal(t, "p-1", got.PromptID)
	assert.Equal(t, "1.0.0", got.Version)
	assert.Equal(t, "v1 content", got.Content)
}

func TestVersionCache_VersionsKeyedSeparately(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	c.Put(ctx, publishedVersion("p-1", "1.0.0", "v1"))
	c.Put(ctx, publishedVersion("p-1", "1.1.0", "v1.1"))

	v1, ok := c.Get(ctx, "p-1", "1.0.0")
	require.True(t, ok)
	assert.Equal(t, "v1", v1.Content)

	v11, ok := c.Get(ctx, "p-1", "1.1.0")
	require.True(t, ok)
	assert.Equal(t, "v1.1", v11.Content)

	_, ok = c.Get(ctx, "p-1", "2.0.0")
	assert.False(t, ok)
}

func TestVersionCache_Invalidate(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	c.Put(ctx, publishedVersion("p-1", "1.0.0", "v1"))
	c.Put(ctx, publishedVersion("p-1", "1.1.0", "v1.1"))
	c.Put(ctx, publishedVersion("p-2", "1.0.0", "other"))

	err := c.Invalidate(ctx, "p-1")
	require.NoError(t, err)

	_, ok := c.Get(ctx, "p-1", "1.0.0")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "p-1", "1.1.0")
	assert.False(t, ok)

	// Other prompts untouched.
	_, ok = c.Get(ctx, "p-2", "1.0.0")
	assert.True(t, ok)
}

func TestVersionCache_InvalidateEmpty(t *testing.T) {
	c, _ := setupCache(t)

	err := c.Invalidate(context.Background(), "p-none")
	require.NoError(t, err)
}

func TestVersionCache_TTLExpiry(t *testing.T) {
	c, mr := setupCache(t, WithTTL(time.Minute))
	ctx := context.Background()

	c.Put(ctx, publishedVersion("p-1", "1.0.0", "v1"))

	_, ok := c.Get(ctx, "p-1", "1.0.0")
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	_, ok = c.Get(ctx, "p-1", "1.0.0")
	assert.False(t, ok)
}

func TestVersionCache_CustomPrefix(t *testing.T) {
	c, mr := setupCache(t, WithPrefix("testhub"))
	ctx := context.Background()

	c.Put(ctx, publishedVersion("p-1", "1.0.0", "v1"))

	assert.True(t, mr.Exists("testhub:version:p-1:1.0.0"))
}

func TestVersionCache_NilSafe(t *testing.T) {
	var c *VersionCache
	ctx := context.Background()

	assert.False(t, c.Enabled())

	_, ok := c.Get(ctx, "p-1", "1.0.0")
	assert.False(t, ok)

	c.Put(ctx, publishedVersion("p-1", "1.0.0", "v1"))

	err := c.Invalidate(ctx, "p-1")
	assert.NoError(t, err)
}

func TestVersionCache_CorruptEntryIsMiss(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("prompthub:version:p-1:1.0.0", "{not json"))

	_, ok := c.Get(ctx, "p-1", "1.0.0")
	assert.False(t, ok)
}
