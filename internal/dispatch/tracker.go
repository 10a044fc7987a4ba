package dispatch

// Tracker counts outstanding operation instances of one slice. It replaces a
// single loading flag so that two overlapping operations cannot clear each
// other's loading state. Tracker is not synchronized; the owning slice
// guards it with its own lock.
type Tracker struct {
	inflight map[uint64]string
}

// Observe updates the tracker for ev and reports whether ev was a terminal
// event for an instance the tracker had seen start.
func (t *Tracker) Observe(ev Event) bool {
	if t.inflight == nil {
		t.inflight = make(map[uint64]string)
	}
	switch ev.Phase {
	case Started:
		t.inflight[ev.Seq] = ev.Op
		return false
	case Succeeded, Failed:
		if _, ok := t.inflight[ev.Seq]; !ok {
			return false
		}
		delete(t.inflight, ev.Seq)
		return true
	}
	return false
}

// Loading reports whether any operation is outstanding.
func (t *Tracker) Loading() bool {
	return len(t.inflight) > 0
}

// Pending returns the number of outstanding operations.
func (t *Tracker) Pending() int {
	return len(t.inflight)
}

// PendingOps returns the names of the outstanding operations.
func (t *Tracker) PendingOps() []string {
	ops := make([]string, 0, len(t.inflight))
	for _, op := range t.inflight {
		ops = append(ops, op)
	}
	return ops
}
