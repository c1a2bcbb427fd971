package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mtlprog/helpdesk/internal/metrics"
)

// DefaultSinkTimeout bounds how long a single sink may take per event.
const DefaultSinkTimeout = 5 * time.Second

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, event Event) error
}

// FanOut delivers every event to all configured sinks concurrently.
// A failing sink does not stop the others.
type FanOut struct {
	sinks   []Sink
	timeout time.Duration
}

// Option configures a FanOut.
type Option func(*FanOut)

// WithSinkTimeout overrides DefaultSinkTimeout.
func WithSinkTimeout(d time.Duration) Option {
	return func(f *FanOut) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// NewFanOut creates a FanOut over the given sinks. Nil sinks are skipped.
func NewFanOut(sinks []Sink, opts ...Option) *FanOut {
	f := &FanOut{timeout: DefaultSinkTimeout}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Notify sends the event to every sink and returns the joined sink errors.
// The caller's cancellation is not propagated: the change is already committed.
func (f *FanOut) Notify(ctx context.Context, event Event) error {
	if len(f.sinks) == 0 {
		return nil
	}

	ctx = context.WithoutCancel(ctx)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, sink := range f.sinks {
		wg.Add(1)
		go func(sink Sink) {
			defer wg.Done()

			sctx, cancel := context.WithTimeout(ctx, f.timeout)
			defer cancel()

			if err := sink.Send(sctx, event); err != nil {
				metrics.IncNotificationFailure(sink.Name())
				slog.Warn("notification sink failed",
					"sink", sink.Name(),
					"event_id", event.ID,
					"event_type", event.Type,
					"chamado_id", event.ChamadoID,
					"error", err,
				)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
				mu.Unlock()
			}
		}(sink)
	}

	wg.Wait()
	return errors.Join(errs...)
}
