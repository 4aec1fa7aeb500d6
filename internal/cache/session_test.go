package cache_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cartkit/internal/cache"
)

type sessionStore interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
	Forget(ctx context.Context, prefix string) error
}

func exerciseSession(t *testing.T, a, b sessionStore) {
	ctx := context.Background()

	ok, err := a.Has(ctx, "cart.default")
	require.NoError(t, err)
	require.False(t, ok)
	_, found, err := a.Get(ctx, "cart.default")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, a.Put(ctx, "cart.default", []byte(`[1]`)))
	require.NoError(t, a.Put(ctx, "cart.wishlist", []byte(`[2]`)))
	require.NoError(t, a.Put(ctx, "profile", []byte(`{}`)))
	require.NoError(t, b.Put(ctx, "cart.default", []byte(`[3]`)))

	data, found, err := a.Get(ctx, "cart.default")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `[1]`, string(data))

	data, _, err = b.Get(ctx, "cart.default")
	require.NoError(t, err)
	require.Equal(t, `[3]`, string(data))

	require.NoError(t, a.Remove(ctx, "cart.wishlist"))
	ok, err = a.Has(ctx, "cart.wishlist")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, a.Put(ctx, "cart.wishlist", []byte(`[2]`)))
	require.NoError(t, a.Forget(ctx, "cart."))
	ok, err = a.Has(ctx, "cart.default")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = a.Has(ctx, "profile")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = b.Has(ctx, "cart.default")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisSession(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := cache.RedisSessions{Client: client, TTL: time.Hour}
	exerciseSession(t, sessions.Session("alice"), sessions.Session("bob"))

	require.True(t, mr.Exists(cache.SessionKey("bob", "cart.default")))
	require.Equal(t, time.Hour, mr.TTL(cache.SessionKey("bob", "cart.default")))
}

func TestRedisSessionForgetMatchesLiterally(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sessions := cache.RedisSessions{Client: client, TTL: time.Hour}
	alice := sessions.Session("alice")
	wild := sessions.Session("*")
	require.NoError(t, alice.Put(ctx, "cart.default", []byte(`[1]`)))
	require.NoError(t, wild.Put(ctx, "cart.default", []byte(`[2]`)))

	require.NoError(t, wild.Forget(ctx, "cart."))
	require.NoError(t, sessions.Session("a?ice").Forget(ctx, "cart."))
	require.NoError(t, sessions.Session("[a]lice").Forget(ctx, "cart."))

	ok, err := alice.Has(ctx, "cart.default")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = wild.Has(ctx, "cart.default")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestValidSessionID(t *testing.T) {
	require.True(t, cache.ValidSessionID("3f2c-41ab_session.1"))
	for _, id := range []string{"", "  ", "*", "a?c", "[ab]", `a\b`, "alice:cart.x"} {
		require.False(t, cache.ValidSessionID(id), id)
	}
}

func TestMemorySession(t *testing.T) {
	sessions := cache.NewMemorySessions()
	exerciseSession(t, sessions.Session("alice"), sessions.Session("bob"))
}

func TestRedisSessionWithoutClient(t *testing.T) {
	_, _, err := cache.NewRedisSession(nil, "x", 0).Get(context.Background(), "cart.default")
	require.Error(t, err)
}
