// Package store wires the API modules, the state slices and the dispatcher
// into one root store whose Snapshot is the whole client state.
package store

import (
	"log/slog"

	"github.com/alecgard/formdesk/internal/account"
	"github.com/alecgard/formdesk/internal/client"
	"github.com/alecgard/formdesk/internal/dispatch"
	"github.com/alecgard/formdesk/internal/field"
	"github.com/alecgard/formdesk/internal/form"
	"github.com/alecgard/formdesk/internal/session"
	"github.com/alecgard/formdesk/internal/submission"
)

// MetricsRecorder is the optional recorder used for operations and session
// invalidations.
type MetricsRecorder interface {
	dispatch.MetricsRecorder
	IncSessionInvalidations()
}

// State is the aggregate of every slice.
type State struct {
	Auth        account.State    `json:"auth"`
	Forms       form.State       `json:"forms"`
	Fields      field.State      `json:"formFields"`
	Submissions submission.State `json:"formSubmissions"`
}

type options struct {
	logger    *slog.Logger
	metrics   MetricsRecorder
	pageLimit int
	exportDir string
}

// Option configures a Store.
type Option func(*options)

// WithLogger sets the logger used by the dispatcher and the store.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the optional metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) { o.metrics = m }
}

// WithPageLimit sets the page size used when a listing does not give one.
func WithPageLimit(n int) Option {
	return func(o *options) { o.pageLimit = n }
}

// WithExportDir sets where submission exports are written.
func WithExportDir(dir string) Option {
	return func(o *options) { o.exportDir = dir }
}

// Store is the root store.
type Store struct {
	Auth        *account.Service
	Forms       *form.Service
	Fields      *field.Service
	Submissions *submission.Service

	d           *dispatch.Dispatcher
	logger      *slog.Logger
	metrics     MetricsRecorder
	unsubscribe func()
}

// New builds a Store on top of c. tokens must be the same store c reads its
// bearer token from.
func New(c client.Doer, tokens session.Store, opts ...Option) *Store {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	dopts := []dispatch.Option{dispatch.WithLogger(o.logger)}
	if o.metrics != nil {
		dopts = append(dopts, dispatch.WithMetrics(o.metrics))
	}
	d := dispatch.New(dopts...)

	s := &Store{
		Auth:        account.NewService(account.NewAPI(c), account.NewSlice(), d, tokens),
		Forms:       form.NewService(form.NewAPI(c), form.NewSlice(), d, o.pageLimit),
		Fields:      field.NewService(field.NewAPI(c), field.NewSlice(), d),
		Submissions: submission.NewService(submission.NewAPI(c), submission.NewSlice(), d, o.pageLimit, o.exportDir),
		d:           d,
		logger:      o.logger,
		metrics:     o.metrics,
	}
	s.unsubscribe = d.Subscribe(s.onEvent)
	return s
}

// Dispatcher returns the dispatcher shared by every slice.
func (s *Store) Dispatcher() *dispatch.Dispatcher {
	return s.d
}

// Snapshot returns a copy of every slice.
func (s *Store) Snapshot() State {
	return State{
		Auth:        s.Auth.Slice().Snapshot(),
		Forms:       s.Forms.Slice().Snapshot(),
		Fields:      s.Fields.Slice().Snapshot(),
		Submissions: s.Submissions.Slice().Snapshot(),
	}
}

// Pending returns the outstanding operation count of each slice.
func (s *Store) Pending() map[string]int {
	return map[string]int{
		"auth":            s.Auth.Slice().Snapshot().InFlight,
		"forms":           s.Forms.Slice().Snapshot().Pending,
		"formFields":      s.Fields.Slice().Snapshot().Pending,
		"formSubmissions": s.Submissions.Slice().Snapshot().Pending,
	}
}

// Close detaches the store from its dispatcher.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// onEvent drops the session when the backend rejects the token on any
// operation that presented it. Credential exchanges and the profile fetch
// handle their own failures.
func (s *Store) onEvent(ev dispatch.Event) {
	if ev.Op == account.OpInvalidate && s.metrics != nil {
		s.metrics.IncSessionInvalidations()
		return
	}
	if ev.Phase != dispatch.Failed || ev.Kind != client.KindUnauthorized {
		return
	}
	if account.IsCredentialOp(ev.Op) || ev.Op == account.OpProfile {
		return
	}
	s.logger.Info("session rejected by backend", "op", ev.Op)
	if err := s.Auth.Invalidate(client.Message(ev.Err, "Session expired")); err != nil {
		s.logger.Error("invalidating session", "error", err)
	}
}
