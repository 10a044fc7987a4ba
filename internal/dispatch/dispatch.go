// Package dispatch runs named asynchronous operations and feeds their
// lifecycle (started, succeeded, failed) into the slice that owns them.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alecgard/formdesk/internal/client"
)

// Phase is the lifecycle stage carried by an Event.
type Phase int

const (
	Started Phase = iota
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Started:
		return "started"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Event is one lifecycle notification for an issued operation. Seq
// identifies the operation instance; all events of one instance share it.
type Event struct {
	Op      string
	Phase   Phase
	Seq     uint64
	Payload any
	Err     error
	Kind    client.Kind
}

// Reducer applies events to the state it owns. Reduce must not block.
type Reducer interface {
	Reduce(ev Event)
}

// MetricsRecorder is an optional interface for recording operation metrics.
type MetricsRecorder interface {
	IncOperation(op, outcome string)
	IncOperationsInFlight(op string)
	DecOperationsInFlight(op string)
}

// Dispatcher issues operations. It does not queue or deduplicate: two
// concurrent runs of the same operation race and whichever settles last
// wins.
type Dispatcher struct {
	seq     atomic.Uint64
	mu      sync.RWMutex
	subs    map[uint64]func(Event)
	nextSub uint64
	metrics MetricsRecorder
	logger  *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics sets the optional metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the lifecycle logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		subs:   make(map[uint64]func(Event)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers fn to be called after every reduced event. Calls happen
// synchronously on the goroutine that emitted the event. The returned func
// removes the subscription.
func (d *Dispatcher) Subscribe(fn func(Event)) func() {
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

// Emit reduces ev into r and notifies subscribers.
func (d *Dispatcher) Emit(r Reducer, ev Event) {
	r.Reduce(ev)

	d.mu.RLock()
	subs := make([]func(Event), 0, len(d.subs))
	for _, fn := range d.subs {
		subs = append(subs, fn)
	}
	d.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// Run issues op against r: Started is emitted before fn is called, then
// exactly one of Succeeded (with fn's result as payload) or Failed.
func Run[T any](ctx context.Context, d *Dispatcher, r Reducer, op string, fn func(context.Context) (T, error)) (T, error) {
	seq := d.seq.Add(1)
	start := time.Now()

	if d.metrics != nil {
		d.metrics.IncOperationsInFlight(op)
		defer d.metrics.DecOperationsInFlight(op)
	}

	d.Emit(r, Event{Op: op, Phase: Started, Seq: seq})
	d.logger.Debug("operation started", "op", op, "seq", seq)

	// A panicking fn still settles its Started event before the panic
	// propagates.
	settled := false
	defer func() {
		if settled {
			return
		}
		if p := recover(); p != nil {
			err := fmt.Errorf("operation %s panicked: %v", op, p)
			d.Emit(r, Event{Op: op, Phase: Failed, Seq: seq, Err: err, Kind: client.KindUnknown})
			if d.metrics != nil {
				d.metrics.IncOperation(op, "failed")
			}
			d.logger.Error("operation panicked", "op", op, "seq", seq, "panic", p)
			panic(p)
		}
	}()

	result, err := fn(ctx)
	settled = true
	if err != nil {
		kind := client.Classify(err)
		d.Emit(r, Event{Op: op, Phase: Failed, Seq: seq, Err: err, Kind: kind})
		if d.metrics != nil {
			d.metrics.IncOperation(op, "failed")
		}
		d.logger.Warn("operation failed",
			"op", op,
			"seq", seq,
			"kind", kind,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		var zero T
		return zero, err
	}

	d.Emit(r, Event{Op: op, Phase: Succeeded, Seq: seq, Payload: result})
	if d.metrics != nil {
		d.metrics.IncOperation(op, "succeeded")
	}
	d.logger.Debug("operation succeeded",
		"op", op,
		"seq", seq,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
