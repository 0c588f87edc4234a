package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Williamonyango/Scented-muse-Backend/internal/models"
)

func testSession() models.PendingPayment {
	return models.PendingPayment{
		UserID: uuid.New(),
		Products: []models.PendingLineItem{
			{ProductID: uuid.New(), Quantity: 1, Price: 250},
		},
		Amount: 250,
	}
}

func TestMemoryStoreClaimConsumesSession(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)
	ctx := context.Background()
	session := testSession()

	require.NoError(t, store.Put(ctx, "254712345678", session))

	claimed, err := store.Claim(ctx, "254712345678")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, session.UserID, claimed.UserID)

	second, err := store.Claim(ctx, "254712345678")
	require.NoError(t, err)
	assert.Nil(t, second, "a claimed session must not be claimable again")
}

func TestMemoryStoreMissingKey(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)

	claimed, err := store.Claim(context.Background(), "254700000000")
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestMemoryStoreExpiredSessionReadsAbsent(t *testing.T) {
	store := NewMemorySessionStore(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "254712345678", testSession()))
	time.Sleep(25 * time.Millisecond)

	claimed, err := store.Claim(ctx, "254712345678")
	require.NoError(t, err)
	assert.Nil(t, claimed, "an expired session is an abandoned payment")
}

func TestMemoryStoreOverwriteIsLastWriterWins(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)
	ctx := context.Background()

	first := testSession()
	second := testSession()
	second.Amount = 999

	require.NoError(t, store.Put(ctx, "254712345678", first))
	require.NoError(t, store.Put(ctx, "254712345678", second))

	claimed, err := store.Claim(ctx, "254712345678")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, second.UserID, claimed.UserID)
	assert.Equal(t, int64(999), claimed.Amount)
}

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisSessionStore(client, ttl), mr
}

func TestRedisStoreClaimConsumesSession(t *testing.T) {
	store, _ := newRedisStore(t, time.Minute)
	ctx := context.Background()
	session := testSession()

	require.NoError(t, store.Put(ctx, "254712345678", session))

	claimed, err := store.Claim(ctx, "254712345678")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, session.UserID, claimed.UserID)
	assert.Equal(t, session.Products, claimed.Products)

	second, err := store.Claim(ctx, "254712345678")
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestRedisStoreSessionExpires(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "254712345678", testSession()))
	mr.FastForward(2 * time.Minute)

	claimed, err := store.Claim(ctx, "254712345678")
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestRedisStoreMissingKey(t *testing.T) {
	store, _ := newRedisStore(t, time.Minute)

	claimed, err := store.Claim(context.Background(), "254700000000")
	require.NoError(t, err)
	assert.Nil(t, claimed)
}
