package flow

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPKCE(t *testing.T) {
	verifier, challenge, err := NewPKCE()
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(verifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), challenge)
}

func TestRedisPendingStore_TakeIsOneShot(t *testing.T) {
	client, prefix := testutil.SetupTestRedis(t)
	store := NewRedisPendingStore(client, prefix)
	ctx := context.Background()

	state, err := NewState()
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, state, Pending{
		Provider:  "google",
		Verifier:  "verifier",
		CreatedAt: time.Now(),
	}))

	first, err := store.Take(ctx, state)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "google", first.Provider)
	assert.Equal(t, "verifier", first.Verifier)

	second, err := store.Take(ctx, state)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestRedisPendingStore_PutValidates(t *testing.T) {
	client, prefix := testutil.SetupTestRedis(t)
	store := NewRedisPendingStore(client, prefix)

	err := store.Put(context.Background(), "", Pending{Provider: "google", Verifier: "v"})
	assert.Error(t, err)
}

func TestRedisGrantStore_RoundTrip(t *testing.T) {
	client, prefix := testutil.SetupTestRedis(t)
	store := NewRedisGrantStore(client, prefix)
	ctx := context.Background()

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	grant := auth.Grant{
		Identity: auth.Identity{
			ID:    "0b6c1b0e-7f43-4c5e-9f0a-6a3f7f1d2c11",
			Email: "new@x.com",
			Metadata: auth.Metadata{
				Provider: "google",
			},
		},
		Token:     "opaque",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Put(ctx, grant))

	got, err = store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, grant.Identity, got.Identity)
	assert.Equal(t, "opaque", got.Token)

	require.NoError(t, store.Delete(ctx))

	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisGrantStore_RejectsExpired(t *testing.T) {
	client, prefix := testutil.SetupTestRedis(t)
	store := NewRedisGrantStore(client, prefix)

	err := store.Put(context.Background(), auth.Grant{
		Identity:  auth.Identity{ID: "id"},
		Token:     "t",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	assert.Error(t, err)
}
