package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alecgard/formdesk/internal/client"
)

type recordingReducer struct {
	mu      sync.Mutex
	events  []Event
	tracker Tracker
}

func (r *recordingReducer) Reduce(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracker.Observe(ev)
	r.events = append(r.events, ev)
}

func (r *recordingReducer) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

type fakeMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	inflight int
}

func (f *fakeMetrics) IncOperation(op, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcomes == nil {
		f.outcomes = map[string]int{}
	}
	f.outcomes[op+":"+outcome]++
}

func (f *fakeMetrics) IncOperationsInFlight(string) {
	f.mu.Lock()
	f.inflight++
	f.mu.Unlock()
}

func (f *fakeMetrics) DecOperationsInFlight(string) {
	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()
}

func TestRunSuccess(t *testing.T) {
	d := New()
	r := &recordingReducer{}

	got, err := Run(context.Background(), d, r, "things/fetch", func(context.Context) (int, error) {
		if !r.tracker.Loading() {
			t.Error("expected loading while the operation runs")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}

	evs := r.snapshot()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].Phase != Started || evs[1].Phase != Succeeded {
		t.Errorf("unexpected phases %v, %v", evs[0].Phase, evs[1].Phase)
	}
	if evs[0].Seq != evs[1].Seq {
		t.Errorf("events of one run must share a sequence number")
	}
	if evs[1].Payload != 42 {
		t.Errorf("payload = %v, want 42", evs[1].Payload)
	}
	if r.tracker.Loading() {
		t.Error("expected loading cleared after success")
	}
}

func TestRunFailureClassifiesError(t *testing.T) {
	d := New()
	r := &recordingReducer{}
	apiErr := &client.APIError{StatusCode: 404, Status: "error", Message: "Form not found"}

	_, err := Run(context.Background(), d, r, "things/fetch", func(context.Context) (*struct{}, error) {
		return nil, apiErr
	})
	if !errors.Is(err, apiErr) {
		t.Fatalf("expected the api error back, got %v", err)
	}

	evs := r.snapshot()
	last := evs[len(evs)-1]
	if last.Phase != Failed {
		t.Fatalf("expected Failed, got %v", last.Phase)
	}
	if last.Kind != client.KindNotFound {
		t.Errorf("kind = %q, want %q", last.Kind, client.KindNotFound)
	}
	if last.Payload != nil {
		t.Errorf("failed events carry no payload, got %v", last.Payload)
	}
}

func TestRunDistinctSequences(t *testing.T) {
	d := New()
	r := &recordingReducer{}
	for i := 0; i < 3; i++ {
		_, _ = Run(context.Background(), d, r, "things/fetch", func(context.Context) (int, error) { return i, nil })
	}
	seen := map[uint64]bool{}
	for _, ev := range r.snapshot() {
		if ev.Phase == Started {
			if seen[ev.Seq] {
				t.Fatalf("sequence %d reused", ev.Seq)
			}
			seen[ev.Seq] = true
		}
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 sequences, got %d", len(seen))
	}
}

func TestOverlappingRunsKeepLoading(t *testing.T) {
	d := New()
	r := &recordingReducer{}

	releaseSlow := make(chan struct{})
	slowStarted := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = Run(context.Background(), d, r, "things/slow", func(context.Context) (int, error) {
			close(slowStarted)
			<-releaseSlow
			return 1, nil
		})
	}()
	<-slowStarted

	_, _ = Run(context.Background(), d, r, "things/fast", func(context.Context) (int, error) { return 2, nil })

	r.mu.Lock()
	loading := r.tracker.Loading()
	pending := r.tracker.PendingOps()
	r.mu.Unlock()
	if !loading {
		t.Error("fast completion must not clear loading while slow is in flight")
	}
	if len(pending) != 1 || pending[0] != "things/slow" {
		t.Errorf("pending = %v, want [things/slow]", pending)
	}

	close(releaseSlow)
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tracker.Loading() {
		t.Error("expected loading cleared once all runs settled")
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	d := New()
	r := &recordingReducer{}

	var got []Phase
	unsubscribe := d.Subscribe(func(ev Event) { got = append(got, ev.Phase) })

	_, _ = Run(context.Background(), d, r, "things/fetch", func(context.Context) (int, error) { return 1, nil })
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}

	unsubscribe()
	_, _ = Run(context.Background(), d, r, "things/fetch", func(context.Context) (int, error) { return 1, nil })
	if len(got) != 2 {
		t.Errorf("expected no notifications after unsubscribe, got %d", len(got))
	}
}

func TestSubscriberSeesReducedState(t *testing.T) {
	d := New()
	r := &recordingReducer{}
	d.Subscribe(func(ev Event) {
		evs := r.snapshot()
		if evs[len(evs)-1].Seq != ev.Seq || evs[len(evs)-1].Phase != ev.Phase {
			t.Errorf("subscriber ran before the event was reduced")
		}
	})
	_, _ = Run(context.Background(), d, r, "things/fetch", func(context.Context) (int, error) { return 1, nil })
}

func TestRunRecordsMetrics(t *testing.T) {
	m := &fakeMetrics{}
	d := New(WithMetrics(m))
	r := &recordingReducer{}

	_, _ = Run(context.Background(), d, r, "things/fetch", func(context.Context) (int, error) { return 1, nil })
	_, _ = Run(context.Background(), d, r, "things/fetch", func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})

	if m.outcomes["things/fetch:succeeded"] != 1 || m.outcomes["things/fetch:failed"] != 1 {
		t.Errorf("unexpected outcomes %v", m.outcomes)
	}
	if m.inflight != 0 {
		t.Errorf("in-flight gauge should return to 0, got %d", m.inflight)
	}
}

func TestTrackerIgnoresUnstartedTerminalEvents(t *testing.T) {
	var tr Tracker
	if tr.Observe(Event{Op: "things/clearError", Phase: Succeeded}) {
		t.Error("a synchronous action has no started instance")
	}
	if tr.Loading() {
		t.Error("tracker should not be loading")
	}

	tr.Observe(Event{Op: "a", Phase: Started, Seq: 1})
	tr.Observe(Event{Op: "b", Phase: Started, Seq: 2})
	if tr.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", tr.Pending())
	}
	if !tr.Observe(Event{Op: "a", Phase: Failed, Seq: 1}) {
		t.Error("expected terminal event for a started instance")
	}
	if !tr.Loading() {
		t.Error("b is still in flight")
	}
	tr.Observe(Event{Op: "b", Phase: Succeeded, Seq: 2})
	if tr.Loading() {
		t.Error("expected idle tracker")
	}
}

func TestPhaseString(t *testing.T) {
	cases := map[Phase]string{Started: "started", Succeeded: "succeeded", Failed: "failed", Phase(9): "unknown"}
	for p, want := range cases {
		if p.String() != want {
			t.Errorf("%d.String() = %q, want %q", p, p.String(), want)
		}
	}
}

func TestRunPanicSettlesOperation(t *testing.T) {
	m := &fakeMetrics{}
	d := New(WithMetrics(m))
	r := &recordingReducer{}

	func() {
		defer func() {
			if p := recover(); p != "boom" {
				t.Errorf("expected the panic to propagate, got %v", p)
			}
		}()
		_, _ = Run(context.Background(), d, r, "things/fetch", func(context.Context) (int, error) {
			panic("boom")
		})
	}()

	evs := r.snapshot()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	last := evs[1]
	if last.Phase != Failed || last.Seq != evs[0].Seq {
		t.Fatalf("expected Failed for the started run, got %v seq %d", last.Phase, last.Seq)
	}
	if last.Err == nil || last.Kind != client.KindUnknown {
		t.Errorf("unexpected failure record: err=%v kind=%q", last.Err, last.Kind)
	}
	if r.tracker.Loading() {
		t.Error("expected loading cleared after a panic")
	}
	if m.outcomes["things/fetch:failed"] != 1 || m.inflight != 0 {
		t.Errorf("metrics not settled: %v, inflight %d", m.outcomes, m.inflight)
	}
}
