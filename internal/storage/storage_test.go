package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisSlots(t *testing.T, ttl time.Duration) (*RedisSlots, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSlots(client, "shopflow", ttl), mr
}

func TestSlots_RoundTrip(t *testing.T) {
	fileSlots, err := NewFileSlots(afero.NewMemMapFs(), "/carts")
	require.NoError(t, err)
	redisSlots, _ := newRedisSlots(t, 0)

	backends := map[string]Slots{
		"memory": NewMemorySlots(),
		"file":   fileSlots,
		"redis":  redisSlots,
	}
	for name, slots := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := slots.Get(ctx, "shopflow-cart:a")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, slots.Put(ctx, "shopflow-cart:a", []byte(`[1]`)))
			require.NoError(t, slots.Put(ctx, "shopflow-cart:a", []byte(`[1,2]`)))
			got, err := slots.Get(ctx, "shopflow-cart:a")
			require.NoError(t, err)
			assert.Equal(t, `[1,2]`, string(got))

			require.NoError(t, slots.Delete(ctx, "shopflow-cart:a"))
			_, err = slots.Get(ctx, "shopflow-cart:a")
			assert.ErrorIs(t, err, ErrNotFound)

			// deleting twice is fine
			assert.NoError(t, slots.Delete(ctx, "shopflow-cart:a"))
		})
	}
}

func TestFileSlots_KeysStayInsideDir(t *testing.T) {
	fsys := afero.NewMemMapFs()
	slots, err := NewFileSlots(fsys, "/carts")
	require.NoError(t, err)

	require.NoError(t, slots.Put(context.Background(), "../../etc/passwd", []byte("x")))
	ok, err := afero.Exists(fsys, "/etc/passwd")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSlots_TTL(t *testing.T) {
	slots, mr := newRedisSlots(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, slots.Put(ctx, "k", []byte("v")))
	assert.Equal(t, time.Minute, mr.TTL("shopflow:k"))

	mr.FastForward(2 * time.Minute)
	_, err := slots.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}
