package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mtlprog/helpdesk/internal/metrics"
)

const (
	DefaultDispatcherWorkers   = 4
	DefaultDispatcherQueueSize = 256
)

var (
	// ErrDispatcherClosed is returned for events submitted after Close.
	ErrDispatcherClosed = errors.New("notification dispatcher closed")
	// ErrDispatcherFull is returned when the chamado's queue has no room.
	ErrDispatcherFull = errors.New("notification queue full")
)

// Notifier delivers one event.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type dispatch struct {
	ctx   context.Context
	event Event
}

// Dispatcher queues events and delivers them to the next Notifier in the
// background. Events of the same chamado always land on the same worker,
// so they are delivered in the order they were queued.
type Dispatcher struct {
	next   Notifier
	queues []chan dispatch
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines, each with a queue of queueSize
// events. Non-positive values fall back to the defaults.
func NewDispatcher(next Notifier, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = DefaultDispatcherWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultDispatcherQueueSize
	}

	d := &Dispatcher{
		next:   next,
		queues: make([]chan dispatch, workers),
	}
	for i := range d.queues {
		d.queues[i] = make(chan dispatch, queueSize)
		d.wg.Add(1)
		go d.run(d.queues[i])
	}
	return d
}

// Notify queues the event and returns without waiting for delivery.
// A full queue drops the event.
func (d *Dispatcher) Notify(ctx context.Context, event Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queues[d.shard(event.ChamadoID)] <- dispatch{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		metrics.IncNotificationFailure("dispatcher")
		slog.Warn("notification queue full, event dropped",
			"event_id", event.ID,
			"event_type", event.Type,
			"chamado_id", event.ChamadoID,
		)
		return ErrDispatcherFull
	}
}

// Close stops accepting events and waits until the queued ones are
// delivered or ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, q := range d.queues {
			close(q)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) shard(chamadoID int64) int {
	return int(uint64(chamadoID) % uint64(len(d.queues)))
}

func (d *Dispatcher) run(queue <-chan dispatch) {
	defer d.wg.Done()

	for job := range queue {
		// Sink failures are already logged and counted by the next notifier.
		_ = d.next.Notify(job.ctx, job.event)
	}
}
