package application

import (
	"context"
	"errors"
	"sync"

	"github.com/zjrosen/cqlconn/internal/connections/domain"
)

// fakeStore records every saved document. Saves block while gate is non-nil
// and unreadable, which lets tests pile up enqueues behind a slow write.
type fakeStore struct {
	mu      sync.Mutex
	loaded  *domain.State
	loadErr error
	saveErr error
	saves   []*domain.State
	gate    chan struct{}
	started chan struct{}
	closed  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{started: make(chan struct{}, 64)}
}

func (s *fakeStore) Load(context.Context) (*domain.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded, s.loadErr
}

func (s *fakeStore) Save(ctx context.Context, state *domain.State) error {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()

	select {
	case s.started <- struct{}{}:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves = append(s.saves, state)
	return nil
}

func (s *fakeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStore) setGate(ch chan struct{}) {
	s.mu.Lock()
	s.gate = ch
	s.mu.Unlock()
}

func (s *fakeStore) setSaveErr(err error) {
	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()
}

func (s *fakeStore) savedStates() []*domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.State(nil), s.saves...)
}

func (s *fakeStore) last() *domain.State {
	saves := s.savedStates()
	if len(saves) == 0 {
		return nil
	}
	return saves[len(saves)-1]
}

var errDiskFull = errors.New("disk full")
