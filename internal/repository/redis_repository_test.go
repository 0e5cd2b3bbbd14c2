package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a repository bound to it
func setupTestRedis(t *testing.T) (*RedisCartRepository, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	repo := NewRedisCartRepository(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return repo, mr, cleanup
}

func sampleLines() []domain.CartLine {
	return []domain.CartLine{
		{
			ProductID:      "P1",
			Name:           "Caneca",
			UnitPrice:      decimal.RequireFromString("10.50"),
			Quantity:       2,
			ImageRef:       "https://cdn.example/p1.png",
			AvailableStock: 5,
		},
		{
			ProductID:      "P2",
			Name:           "Camiseta",
			UnitPrice:      decimal.RequireFromString("59.90"),
			Quantity:       1,
			AvailableStock: 3,
		},
	}
}

func TestRedisLoad_NotFound(t *testing.T) {
	repo, _, cleanup := setupTestRedis(t)
	defer cleanup()

	lines, err := repo.Load(context.Background(), "nobody")

	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, lines)
}

func TestRedisSaveThenLoad_RoundTrip(t *testing.T) {
	repo, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	written := sampleLines()

	require.NoError(t, repo.Save(ctx, "s1", written))

	read, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, read, len(written))
	for i := range written {
		assert.Equal(t, written[i].ProductID, read[i].ProductID)
		assert.Equal(t, written[i].Quantity, read[i].Quantity)
		assert.True(t, written[i].UnitPrice.Equal(read[i].UnitPrice))
		assert.Equal(t, written[i].AvailableStock, read[i].AvailableStock)
	}
}

func TestRedisSave_OverwritesInFull(t *testing.T) {
	repo, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "s1", sampleLines()))
	require.NoError(t, repo.Save(ctx, "s1", sampleLines()[:1]))

	read, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, read, 1)
}

func TestRedisSave_EmptyCartIsStoredNotAbsent(t *testing.T) {
	repo, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "s1", nil))

	stored, err := mr.Get(cartKey("s1"))
	require.NoError(t, err)
	assert.Equal(t, "[]", stored)

	read, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, read)
}

func TestRedisSave_SetsRetention(t *testing.T) {
	repo, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, repo.Save(context.Background(), "s1", sampleLines()))

	assert.Equal(t, CartRetention, mr.TTL(cartKey("s1")))
}

func TestRedisLoad_CorruptPayload(t *testing.T) {
	repo, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(cartKey("s1"), `[{"product_id":`))

	_, err := repo.Load(context.Background(), "s1")
	require.ErrorContains(t, err, "unmarshal cart failed")
}

func TestRedisLoad_ServerDown(t *testing.T) {
	repo, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := repo.Load(ctx, "s1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCartNotFound)
}

func TestRedisDelete(t *testing.T) {
	repo, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "s1", sampleLines()))
	assert.True(t, mr.Exists(cartKey("s1")))

	require.NoError(t, repo.Delete(ctx, "s1"))
	assert.False(t, mr.Exists(cartKey("s1")))

	// Deleting a missing key is not an error
	assert.NoError(t, repo.Delete(ctx, "s1"))
}

func TestCartKey_Format(t *testing.T) {
	assert.Equal(t, "cart:abc", cartKey("abc"))
}
