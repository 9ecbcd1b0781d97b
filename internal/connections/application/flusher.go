package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/cqlconn/internal/connections/domain"
	"github.com/zjrosen/cqlconn/internal/log"
	"github.com/zjrosen/cqlconn/internal/tracing"
)

// DefaultFlushTimeout bounds a single store write.
const DefaultFlushTimeout = 10 * time.Second

// ErrFlusherClosed is returned by Wait when the flusher stopped before
// writing the requested generation.
var ErrFlusherClosed = errors.New("flusher closed")

// FlushResult reports the outcome of one store write.
type FlushResult struct {
	Generation uint64 // newest enqueued generation covered by the write
	Coalesced  uint64 // generations skipped because a newer one superseded them
	Err        error
}

// Flusher writes registry snapshots to a StateStore from a single goroutine.
//
// Each Enqueue replaces the pending snapshot and bumps a generation counter.
// The writer always takes the newest pending snapshot, so writes never
// interleave and an older snapshot is never written after a newer one.
// Intermediate snapshots may be skipped.
type Flusher struct {
	store    domain.StateStore
	tracer   trace.Tracer
	timeout  time.Duration
	onResult func(FlushResult)

	mu       sync.Mutex
	pending  *domain.State
	queued   uint64 // generation of the newest enqueued snapshot
	written  uint64 // generation covered by the newest completed write
	lastErr  error  // result of the newest completed write
	progress chan struct{}
	closed   bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewFlusher creates a flusher and starts its writer goroutine.
func NewFlusher(store domain.StateStore, tracer trace.Tracer, timeout time.Duration, onResult func(FlushResult)) *Flusher {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if timeout <= 0 {
		timeout = DefaultFlushTimeout
	}
	if onResult == nil {
		onResult = func(FlushResult) {}
	}
	f := &Flusher{
		store:    store,
		tracer:   tracer,
		timeout:  timeout,
		onResult: onResult,
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go f.loop()
	return f
}

// Enqueue schedules state to be written and returns its generation.
// It never blocks on I/O. After Close it returns 0 and writes nothing.
func (f *Flusher) Enqueue(state *domain.State) uint64 {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0
	}
	f.queued++
	f.pending = state
	gen := f.queued
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
		// Writer already signalled; it will pick up the newest pending state.
	}
	return gen
}

// Queued returns the generation of the newest enqueued snapshot.
func (f *Flusher) Queued() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queued
}

// Wait blocks until a write covering gen has completed and returns that
// write's error. Generation 0 returns immediately.
func (f *Flusher) Wait(ctx context.Context, gen uint64) error {
	for {
		f.mu.Lock()
		if gen == 0 || f.written >= gen {
			err := f.lastErr
			f.mu.Unlock()
			return err
		}
		ch := f.progress
		f.mu.Unlock()

		select {
		case <-ch:
		case <-f.done:
			f.mu.Lock()
			written, err := f.written, f.lastErr
			f.mu.Unlock()
			if written >= gen {
				return err
			}
			return ErrFlusherClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close writes any pending snapshot, stops the writer, and returns the
// result of the final write.
func (f *Flusher) Close() error {
	f.mu.Lock()
	if f.closed {
		err := f.lastErr
		f.mu.Unlock()
		return err
	}
	f.closed = true
	f.mu.Unlock()

	close(f.stop)
	<-f.done

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *Flusher) loop() {
	defer close(f.done)
	for {
		select {
		case <-f.wake:
			f.flushPending()
		case <-f.stop:
			f.flushPending()
			return
		}
	}
}

func (f *Flusher) flushPending() {
	f.mu.Lock()
	state, gen, prev := f.pending, f.queued, f.written
	f.pending = nil
	f.mu.Unlock()

	if state == nil {
		return
	}

	var coalesced uint64
	if gen > prev+1 {
		coalesced = gen - prev - 1
	}
	err := f.write(state, gen, coalesced)

	f.mu.Lock()
	f.written = gen
	f.lastErr = err
	close(f.progress)
	f.progress = make(chan struct{})
	f.mu.Unlock()

	f.onResult(FlushResult{Generation: gen, Coalesced: coalesced, Err: err})
}

func (f *Flusher) write(state *domain.State, gen, coalesced uint64) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	ctx, span := f.tracer.Start(ctx, tracing.SpanPrefixFlush+"write",
		trace.WithAttributes(
			attribute.Int64(tracing.AttrFlushGeneration, int64(gen)),
			attribute.Int(tracing.AttrConnectionCount, len(state.Connections)),
		),
	)
	if coalesced > 0 {
		span.AddEvent(tracing.EventCoalesced, trace.WithAttributes(attribute.Int64("skipped", int64(coalesced))))
	}

	err := f.store.Save(ctx, state)
	tracing.EndSpan(span, err)

	if err != nil {
		log.ErrorErr(log.CatFlush, "Flush failed", err, "generation", gen)
	} else {
		log.Debug(log.CatFlush, "Flushed state", "generation", gen, "coalesced", coalesced,
			"connections", len(state.Connections))
	}
	return err
}
