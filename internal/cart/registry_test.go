package cart

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopflow/internal/storage"
)

func acquire(t *testing.T, reg *Registry, session string) (*Store, func()) {
	t.Helper()
	st, release, err := reg.Acquire(context.Background(), session)
	require.NoError(t, err)
	return st, release
}

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	reg, err := NewRegistry(storage.NewMemorySlots(), 8, zerolog.Nop())
	require.NoError(t, err)

	a, releaseA := acquire(t, reg, "a")
	defer releaseA()
	b, releaseB := acquire(t, reg, "b")
	defer releaseB()
	require.NoError(t, a.Add(ctx, product(1, "10", 5), "", "", 1))

	again, releaseAgain := acquire(t, reg, "a")
	defer releaseAgain()
	assert.Same(t, a, again)
	assert.Equal(t, 1, a.ItemCount())
	assert.Equal(t, 0, b.ItemCount())
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_RehydratesAfterEviction(t *testing.T) {
	ctx := context.Background()
	slots := storage.NewMemorySlots()
	reg, err := NewRegistry(slots, 1, zerolog.Nop(), WithStockLimit(false))
	require.NoError(t, err)

	first, release := acquire(t, reg, "a")
	require.NoError(t, first.Add(ctx, product(1, "10", 5), "M", "", 2))
	release()

	_, releaseB := acquire(t, reg, "b") // evicts idle "a"
	releaseB()
	again, releaseAgain := acquire(t, reg, "a")
	defer releaseAgain()
	assert.NotSame(t, first, again)
	assert.Equal(t, first.Items(), again.Items())

	_, err = slots.Get(ctx, SessionKey("a"))
	assert.NoError(t, err)
}

func TestRegistry_EvictionKeepsHeldStore(t *testing.T) {
	ctx := context.Background()
	slots := storage.NewMemorySlots()
	reg, err := NewRegistry(slots, 1, zerolog.Nop(), WithStockLimit(false))
	require.NoError(t, err)

	held, releaseHeld := acquire(t, reg, "x")
	_, releaseY := acquire(t, reg, "y") // evicts "x" while it is held
	releaseY()

	other, releaseOther := acquire(t, reg, "x")
	assert.Same(t, held, other, "a held store must not be rebuilt")

	require.NoError(t, held.Add(ctx, product(1, "10", 5), "", "", 1))
	require.NoError(t, other.Add(ctx, product(2, "20", 5), "", "", 1))
	releaseHeld()
	releaseOther()

	data, err := slots.Get(ctx, SessionKey("x"))
	require.NoError(t, err)
	lines, err := decodeLines(data)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestRegistry_ReleaseIsIdempotent(t *testing.T) {
	reg, err := NewRegistry(storage.NewMemorySlots(), 1, zerolog.Nop())
	require.NoError(t, err)

	first, release := acquire(t, reg, "x")
	_, releaseY := acquire(t, reg, "y")
	release()
	release()
	releaseY()

	_, releaseZ := acquire(t, reg, "z")
	releaseZ()
	again, releaseAgain := acquire(t, reg, "x")
	defer releaseAgain()
	assert.NotSame(t, first, again)
}

type flakySlots struct {
	storage.Slots
	getFailures atomic.Int32
}

func (f *flakySlots) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getFailures.Add(-1) >= 0 {
		return nil, errors.New("connection refused")
	}
	return f.Slots.Get(ctx, key)
}

func TestRegistry_SlotReadFailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemorySlots()
	seeded := NewStore(mem, SessionKey("s"), WithStockLimit(false))
	require.NoError(t, seeded.Add(ctx, product(1, "10", 5), "", "", 1))
	require.NoError(t, seeded.Add(ctx, product(2, "20", 5), "", "", 1))

	slots := &flakySlots{Slots: mem}
	slots.getFailures.Store(1)
	reg, err := NewRegistry(slots, 4, zerolog.Nop())
	require.NoError(t, err)

	_, _, err = reg.Acquire(ctx, "s")
	require.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Equal(t, 0, reg.Len())

	st, release := acquire(t, reg, "s")
	defer release()
	assert.Len(t, st.Items(), 2)

	data, err := mem.Get(ctx, SessionKey("s"))
	require.NoError(t, err)
	lines, err := decodeLines(data)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

type gatedSlots struct {
	storage.Slots
	key     string
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedSlots) Get(ctx context.Context, key string) ([]byte, error) {
	if key == g.key {
		close(g.entered)
		<-g.gate
	}
	return g.Slots.Get(ctx, key)
}

func TestRegistry_LoadDoesNotBlockOtherSessions(t *testing.T) {
	slots := &gatedSlots{
		Slots:   storage.NewMemorySlots(),
		key:     SessionKey("slow"),
		entered: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	reg, err := NewRegistry(slots, 4, zerolog.Nop())
	require.NoError(t, err)

	slowDone := make(chan error, 1)
	go func() {
		_, release, err := reg.Acquire(context.Background(), "slow")
		if err == nil {
			release()
		}
		slowDone <- err
	}()
	<-slots.entered

	fastDone := make(chan error, 1)
	go func() {
		_, release, err := reg.Acquire(context.Background(), "fast")
		if err == nil {
			release()
		}
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("another session waited behind a slow slot read")
	}

	close(slots.gate)
	assert.NoError(t, <-slowDone)
}

func TestRegistry_WaiterHonoursContext(t *testing.T) {
	slots := &gatedSlots{
		Slots:   storage.NewMemorySlots(),
		key:     SessionKey("s"),
		entered: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	reg, err := NewRegistry(slots, 4, zerolog.Nop())
	require.NoError(t, err)

	go func() {
		_, release, err := reg.Acquire(context.Background(), "s")
		if err == nil {
			release()
		}
	}()
	<-slots.entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = reg.Acquire(ctx, "s")
	assert.ErrorIs(t, err, context.Canceled)
	close(slots.gate)
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "shopflow-cart", SessionKey(""))
	assert.Equal(t, "shopflow-cart:abc", SessionKey("abc"))
}

func TestNewRegistry_InvalidSize(t *testing.T) {
	_, err := NewRegistry(storage.NewMemorySlots(), 0, zerolog.Nop())
	assert.Error(t, err)
}
