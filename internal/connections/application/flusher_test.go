package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/cqlconn/internal/connections/domain"
)

func stateWith(names ...string) *domain.State {
	st := domain.NewState()
	for i, n := range names {
		st.Connections[n] = domain.StoredConnection{
			Name:     n,
			Endpoint: "http://" + n,
			Position: i,
			Contexts: map[string]domain.StoredContext{},
		}
	}
	return st
}

func TestFlusher_WritesEnqueuedState(t *testing.T) {
	store := newFakeStore()
	f := NewFlusher(store, nil, time.Second, nil)
	defer f.Close()

	gen := f.Enqueue(stateWith("a"))
	require.Equal(t, uint64(1), gen)
	require.NoError(t, f.Wait(context.Background(), gen))
	require.Equal(t, stateWith("a"), store.last())
}

func TestFlusher_LastFlushWins(t *testing.T) {
	store := newFakeStore()
	gate := make(chan struct{})
	store.setGate(gate)

	var mu sync.Mutex
	var results []FlushResult
	f := NewFlusher(store, nil, 5*time.Second, func(r FlushResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	defer f.Close()

	f.Enqueue(stateWith("a"))
	<-store.started // first write in flight and blocked

	f.Enqueue(stateWith("a", "b"))
	f.Enqueue(stateWith("a", "b", "c"))
	last := f.Enqueue(stateWith("a", "b", "c", "d"))

	close(gate)
	require.NoError(t, f.Wait(context.Background(), last))

	saves := store.savedStates()
	require.Len(t, saves, 2, "intermediate snapshots are coalesced")
	require.Len(t, saves[0].Connections, 1)
	require.Len(t, saves[1].Connections, 4)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 2)
	require.Equal(t, uint64(1), results[0].Generation)
	require.Equal(t, uint64(4), results[1].Generation)
	require.Equal(t, uint64(2), results[1].Coalesced)
}

func TestFlusher_WaitReturnsWriteError(t *testing.T) {
	store := newFakeStore()
	store.setSaveErr(errDiskFull)
	f := NewFlusher(store, nil, time.Second, nil)

	gen := f.Enqueue(stateWith("a"))
	require.ErrorIs(t, f.Wait(context.Background(), gen), errDiskFull)

	store.setSaveErr(nil)
	gen = f.Enqueue(stateWith("a", "b"))
	require.NoError(t, f.Wait(context.Background(), gen), "a later successful write clears the error")
	require.NoError(t, f.Close())
}

func TestFlusher_WaitHonorsContext(t *testing.T) {
	store := newFakeStore()
	gate := make(chan struct{})
	store.setGate(gate)
	f := NewFlusher(store, nil, 5*time.Second, nil)
	defer func() {
		close(gate)
		f.Close()
	}()

	gen := f.Enqueue(stateWith("a"))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, f.Wait(ctx, gen), context.DeadlineExceeded)
}

func TestFlusher_WaitZeroGeneration(t *testing.T) {
	f := NewFlusher(newFakeStore(), nil, time.Second, nil)
	defer f.Close()
	require.NoError(t, f.Wait(context.Background(), 0))
}

func TestFlusher_CloseWritesPending(t *testing.T) {
	store := newFakeStore()
	gate := make(chan struct{})
	store.setGate(gate)
	f := NewFlusher(store, nil, 5*time.Second, nil)

	f.Enqueue(stateWith("a"))
	<-store.started
	f.Enqueue(stateWith("a", "b"))

	go close(gate)
	require.NoError(t, f.Close())
	require.Len(t, store.last().Connections, 2)
}

func TestFlusher_EnqueueAfterClose(t *testing.T) {
	store := newFakeStore()
	f := NewFlusher(store, nil, time.Second, nil)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close(), "close is idempotent")

	require.Zero(t, f.Enqueue(stateWith("a")))
	require.Empty(t, store.savedStates())
}

func TestFlusher_TimeoutBoundsWrite(t *testing.T) {
	store := newFakeStore()
	gate := make(chan struct{})
	defer close(gate)
	store.setGate(gate)
	f := NewFlusher(store, nil, 10*time.Millisecond, nil)
	defer f.Close()

	gen := f.Enqueue(stateWith("a"))
	require.ErrorIs(t, f.Wait(context.Background(), gen), context.DeadlineExceeded)
}
