package cmd

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/cqlconn/internal/connections/application"
	"github.com/zjrosen/cqlconn/internal/connections/domain"
	"github.com/zjrosen/cqlconn/internal/log"
)

// lockedBuffer is a bytes.Buffer safe for a writer goroutine and a reader.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// failingStore loads nothing and fails every save.
type failingStore struct{}

func (failingStore) Load(context.Context) (*domain.State, error) { return nil, nil }

func (failingStore) Save(context.Context, *domain.State) error {
	return errors.New("disk full")
}

func (failingStore) Close() error { return nil }

func TestRelayEvents_ReportsFailedWrites(t *testing.T) {
	ctx := context.Background()
	svc, err := application.NewService(ctx, failingStore{})
	require.NoError(t, err)

	var out bytes.Buffer
	relayed := relayEvents(&out, svc.Subscribe(ctx))

	require.NoError(t, svc.UpsertConnection(ctx, domain.NewConnection("Local", "http://a/fhir")))
	require.Error(t, svc.Close())
	<-relayed

	require.Contains(t, out.String(), "warning: saving state (change 1) failed: disk full")
}

func TestRelayEvents_QuietOnSuccess(t *testing.T) {
	ctx := context.Background()
	svc, err := application.NewService(ctx, failingStore{}, application.WithFlushPolicy(application.FlushSync))
	require.NoError(t, err)

	var out bytes.Buffer
	relayed := relayEvents(&out, svc.Subscribe(ctx))

	// Nothing changes, so nothing is written or reported.
	require.NoError(t, svc.DeleteConnection(ctx, "Missing"))
	require.NoError(t, svc.Close())
	<-relayed

	require.Empty(t, out.String())
}

func TestStreamLog_CopiesEntriesWithoutDebugLogging(t *testing.T) {
	out := &lockedBuffer{}
	stop := streamLog(context.Background(), out)

	log.Debug(log.CatWatcher, "below the stream level")
	log.Info(log.CatWatcher, "State reloaded", "connections", 2)

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("State reloaded connections=2"))
	}, time.Second, 10*time.Millisecond)
	stop()

	require.NotContains(t, out.String(), "below the stream level")
	require.Nil(t, log.Subscribe(context.Background()), "logging is uninstalled after the stream stops")
}
