package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConv struct {
	mu     sync.Mutex
	closed bool
}

func (c *stubConv) Send(ctx context.Context, text string) (string, error) { return "ok", nil }

func (c *stubConv) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *stubConv) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestStoreCreateAndGet(t *testing.T) {
	store := NewStore(time.Hour, zerolog.Nop())

	sess := &Session{ID: "s1", Conv: &stubConv{}}
	require.NoError(t, store.Create(sess))

	got, err := store.Get("s1")
	require.NoError(t, err)
	assert.Same(t, sess, got, "lookups return session identity, not a copy")
}

func TestStoreDuplicateCreate(t *testing.T) {
	store := NewStore(time.Hour, zerolog.Nop())

	require.NoError(t, store.Create(&Session{ID: "s1", Conv: &stubConv{}}))
	err := store.Create(&Session{ID: "s1", Conv: &stubConv{}})
	assert.ErrorIs(t, err, ErrSessionExists)
}

func TestStoreGetUnknown(t *testing.T) {
	store := NewStore(time.Hour, zerolog.Nop())

	_, err := store.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStoreSweepEvictsIdleSessions(t *testing.T) {
	store := NewStore(time.Minute, zerolog.Nop())

	idle := &stubConv{}
	fresh := &stubConv{}
	idleSess := &Session{ID: "idle", Conv: idle}
	require.NoError(t, store.Create(idleSess))
	require.NoError(t, store.Create(&Session{ID: "fresh", Conv: fresh}))

	store.mu.Lock()
	idleSess.lastActive = time.Now().Add(-2 * time.Minute)
	store.mu.Unlock()

	evicted := store.sweepExpired(time.Now())
	assert.Equal(t, 1, evicted)
	assert.True(t, idle.isClosed(), "evicted conversation handle is torn down")
	assert.False(t, fresh.isClosed())

	_, err := store.Get("idle")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get("fresh")
	assert.NoError(t, err)
}

func TestStoreConcurrentCreateGet(t *testing.T) {
	store := NewStore(time.Hour, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			if err := store.Create(&Session{ID: id, Conv: &stubConv{}}); err != nil {
				t.Error(err)
				return
			}
			if _, err := store.Get(id); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, store.Len())
}
