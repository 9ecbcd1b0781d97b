package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/cqlconn/internal/config"
	"github.com/zjrosen/cqlconn/internal/connections/application"
	"github.com/zjrosen/cqlconn/internal/connections/domain"
	"github.com/zjrosen/cqlconn/internal/flags"
	"github.com/zjrosen/cqlconn/internal/infrastructure/jsonfile"
	"github.com/zjrosen/cqlconn/internal/infrastructure/memory"
	"github.com/zjrosen/cqlconn/internal/infrastructure/redis"
	"github.com/zjrosen/cqlconn/internal/infrastructure/sqlite"
	"github.com/zjrosen/cqlconn/internal/log"
	"github.com/zjrosen/cqlconn/internal/tracing"
)

// stateWatcher is implemented by stores that can report writes made by
// other processes.
type stateWatcher interface {
	Watch(ctx context.Context) (<-chan *domain.State, error)
}

// openStore builds the configured state store.
func openStore(ctx context.Context, store config.StoreConfig) (domain.StateStore, error) {
	switch store.Backend {
	case config.BackendFile:
		return jsonfile.New(store.StatePath()), nil
	case config.BackendSQLite:
		s, err := sqlite.Open(store.StatePath())
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, nil
	case config.BackendRedis:
		return redis.Dial(ctx, store.RedisURL, store.RedisKey)
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", store.Backend)
	}
}

func tracingConfig(t config.TracingConfig) tracing.Config {
	tc := tracing.DefaultConfig()
	tc.Enabled = t.Enabled
	tc.Exporter = t.Exporter
	tc.FilePath = t.FilePath
	if tc.FilePath == "" {
		tc.FilePath = config.DefaultTracesFilePath()
	}
	tc.OTLPEndpoint = t.OTLPEndpoint
	tc.SampleRate = t.SampleRate
	return tc
}

// withService opens the configured store, hydrates a service from it, runs
// fn, and closes everything. Pending writes are flushed before returning, so
// a write failure under the async policy is still reported.
func withService(fn func(ctx context.Context, cmd *cobra.Command, svc *application.Service, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		provider, err := tracing.NewProvider(tracingConfig(cfg.Tracing))
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()

		store, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}

		featureFlags := flags.New(cfg.Flags)
		policy := application.FlushSync
		if featureFlags.Enabled(flags.FlagAsyncFlush) {
			policy = application.FlushAsync
		}
		svc, err := application.NewService(ctx, store,
			application.WithFlushPolicy(policy),
			application.WithStrictLoad(featureFlags.Enabled(flags.FlagStrictLoad)),
			application.WithFlushTimeout(cfg.Store.FlushTimeout),
			application.WithTracer(provider.Tracer()),
			application.WithBackendName(cfg.Store.Backend),
		)
		if err != nil {
			_ = store.Close()
			return err
		}
		if loadErr := svc.LoadError(); loadErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(),
				"warning: stored state could not be read, changes will not be saved until connections:clear resets it: %v\n",
				loadErr)
		}
		relayed := relayEvents(cmd.ErrOrStderr(), svc.Subscribe(ctx))
		defer func() {
			closeErr := svc.Close()
			<-relayed
			if closeErr != nil {
				log.ErrorErr(log.CatCLI, "Closing service failed", closeErr)
				err = errors.Join(err, closeErr)
			}
		}()

		return fn(ctx, cmd, svc, args)
	}
}
