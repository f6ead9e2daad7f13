package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "abc", Key("abc", "42"))
	assert.Equal(t, "user:42", Key("", "42"))
	assert.Equal(t, "anonymous", Key("", ""))
}

func TestWithCreatesOnFirstUse(t *testing.T) {
	store := NewStore(Options{})
	ctx := context.Background()

	_, ok, err := store.Peek(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	err = store.With(ctx, "s1", func(c *Context) error {
		assert.Equal(t, 1, c.PendingQuantity)
		assert.Empty(t, c.LastSearch)
		assert.Nil(t, c.LastAdded)
		c.NewSearch([]catalog.Product{{ID: "p1", Name: "Aspirin"}}, 3)
		return nil
	})
	require.NoError(t, err)

	got, ok, err := store.Peek(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.PendingQuantity)
	assert.Len(t, got.LastSearch, 1)
	assert.Equal(t, 1, store.Len())
}

func TestWithPropagatesError(t *testing.T) {
	store := NewStore(Options{})
	boom := fmt.Errorf("boom")
	err := store.With(context.Background(), "s1", func(*Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestContextTransitions(t *testing.T) {
	var c Context
	c.NewSearch([]catalog.Product{{ID: "a"}, {ID: "b"}}, 0)
	assert.Equal(t, 1, c.PendingQuantity)

	c.PendingQuantity = 4
	c.Added(catalog.Product{ID: "a", Name: "A"})
	assert.Empty(t, c.LastSearch)
	require.NotNil(t, c.LastAdded)
	assert.Equal(t, "a", c.LastAdded.ID)
	assert.Equal(t, 1, c.PendingQuantity)

	c.Clear()
	assert.Nil(t, c.LastAdded)
}

func TestPeekReturnsCopy(t *testing.T) {
	store := NewStore(Options{})
	ctx := context.Background()
	require.NoError(t, store.With(ctx, "s1", func(c *Context) error {
		c.Added(catalog.Product{ID: "a", Name: "A"})
		return nil
	}))

	snapshot, _, err := store.Peek(ctx, "s1")
	require.NoError(t, err)
	snapshot.LastAdded.Name = "changed"

	again, _, err := store.Peek(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "A", again.LastAdded.Name)
}

func TestSameSessionTurnsAreSerialised(t *testing.T) {
	store := NewStore(Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.With(ctx, "shared", func(c *Context) error {
				current := c.PendingQuantity
				time.Sleep(time.Millisecond)
				c.PendingQuantity = current + 1
				return nil
			})
		}()
	}
	wg.Wait()

	got, _, err := store.Peek(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, 51, got.PendingQuantity)
}

func TestDifferentSessionsDoNotBlock(t *testing.T) {
	store := NewStore(Options{})
	ctx := context.Background()

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.With(ctx, "slow", func(*Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	finished := make(chan struct{})
	go func() {
		_ = store.With(ctx, "fast", func(*Context) error { return nil })
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("independent session waited on a busy one")
	}
	close(release)
	require.NoError(t, <-done)
}

func TestWithHonoursCancellation(t *testing.T) {
	store := NewStore(Options{})
	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.With(context.Background(), "s1", func(*Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := store.With(ctx, "s1", func(*Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEvictionByCapacity(t *testing.T) {
	store := NewStore(Options{MaxEntries: 2})
	ctx := context.Background()
	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, store.With(ctx, key, func(*Context) error { return nil }))
	}
	assert.Equal(t, 2, store.Len())

	_, ok, err := store.Peek(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvictionByTTL(t *testing.T) {
	store := NewStore(Options{TTL: 20 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, store.With(ctx, "a", func(*Context) error { return nil }))

	assert.Eventually(t, func() bool {
		_, ok, _ := store.Peek(ctx, "a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestResetAndClose(t *testing.T) {
	store := NewStore(Options{})
	ctx := context.Background()
	require.NoError(t, store.With(ctx, "a", func(*Context) error { return nil }))

	store.Reset("a")
	assert.Equal(t, 0, store.Len())

	store.Close()
	err := store.With(ctx, "a", func(*Context) error { return nil })
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestBusySessionSurvivesCapacityEviction(t *testing.T) {
	store := NewStore(Options{MaxEntries: 1})
	ctx := context.Background()

	var inA, maxInA int32
	var mu sync.Mutex
	enterA := func() {
		mu.Lock()
		inA++
		if inA > maxInA {
			maxInA = inA
		}
		mu.Unlock()
	}
	leaveA := func() {
		mu.Lock()
		inA--
		mu.Unlock()
	}

	holding := make(chan struct{})
	release := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- store.With(ctx, "a", func(c *Context) error {
			enterA()
			defer leaveA()
			close(holding)
			<-release
			c.NewSearch([]catalog.Product{{ID: "p1", Name: "Aspirin"}}, 3)
			return nil
		})
	}()
	<-holding

	// A turn for another session pushes a out of the single LRU slot.
	require.NoError(t, store.With(ctx, "b", func(*Context) error { return nil }))

	secondRan := make(chan struct{})
	var seen Context
	second := make(chan error, 1)
	go func() {
		second <- store.With(ctx, "a", func(c *Context) error {
			enterA()
			defer leaveA()
			seen = c.clone()
			close(secondRan)
			return nil
		})
	}()

	select {
	case <-secondRan:
		t.Fatal("second turn of a ran while the first still held it")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	assert.Equal(t, int32(1), maxInA)
	assert.Equal(t, 3, seen.PendingQuantity)
	require.Len(t, seen.LastSearch, 1)
	assert.Equal(t, "p1", seen.LastSearch[0].ID)
	assert.Equal(t, 1, store.Len())
}

func TestPeekWaitsForBusyEvictedSession(t *testing.T) {
	store := NewStore(Options{MaxEntries: 1})
	ctx := context.Background()

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.With(ctx, "a", func(c *Context) error {
			close(holding)
			<-release
			c.PendingQuantity = 7
			return nil
		})
	}()
	<-holding
	require.NoError(t, store.With(ctx, "b", func(*Context) error { return nil }))

	peeked := make(chan Context, 1)
	go func() {
		got, _, _ := store.Peek(ctx, "a")
		peeked <- got
	}()
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 7, (<-peeked).PendingQuantity)
}
