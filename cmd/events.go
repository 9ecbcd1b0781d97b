package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/zjrosen/cqlconn/internal/connections/application"
	"github.com/zjrosen/cqlconn/internal/log"
	"github.com/zjrosen/cqlconn/internal/pubsub"
)

// relayEvents logs registry events and reports failed writes on w as they
// happen. The returned channel closes once events closes.
func relayEvents(w io.Writer, events <-chan pubsub.Event[application.Change]) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range events {
			change := event.Payload
			if event.Type == pubsub.FlushFailedEvent {
				log.ErrorErr(log.CatFlush, "Write failed", change.Err, "generation", change.Generation)
				fmt.Fprintf(w, "warning: saving state (change %d) failed: %v\n", change.Generation, change.Err)
				continue
			}
			log.Debug(log.CatCLI, "Event", "type", event.Type, "connection", change.Connection,
				"context", change.Context, "generation", change.Generation)
		}
	}()
	return done
}

// streamLog copies log entries to w until the returned stop function is
// called. When debug logging is off, entries at info level and above are
// captured for the duration of the stream only.
func streamLog(ctx context.Context, w io.Writer) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)

	uninstall := func() {}
	entries := log.Subscribe(ctx)
	if entries == nil {
		uninstall = log.InitWriter(io.Discard)
		log.SetMinLevel(log.LevelInfo)
		entries = log.Subscribe(ctx)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			event, ok := pubsub.Next(ctx, entries)
			if !ok {
				return
			}
			_, _ = io.WriteString(w, event.Payload)
		}
	}()

	return func() {
		cancel()
		<-done
		uninstall()
	}
}
