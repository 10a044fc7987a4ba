package account

import (
	"sync"

	"github.com/alecgard/formdesk/internal/client"
	"github.com/alecgard/formdesk/internal/dispatch"
)

// Operation names owned by the auth slice.
const (
	OpLogin          = "auth/login"
	OpSignup         = "auth/signup"
	OpProfile        = "auth/profile"
	OpForgotPassword = "auth/forgot-password"
	OpResetPassword  = "auth/reset-password"
	OpVerifyEmail    = "auth/verify-email"
	OpLogout         = "auth/logout"
	OpInvalidate     = "auth/invalidate"
	OpClearErrors    = "auth/clear-errors"
	OpSetFieldError  = "auth/set-field-error"
	OpClearFieldErr  = "auth/clear-field-error"
)

// credentialOps exchange credentials rather than present a token, so an
// authorization failure there says nothing about the stored session.
var credentialOps = map[string]bool{
	OpLogin:          true,
	OpSignup:         true,
	OpForgotPassword: true,
	OpResetPassword:  true,
	OpVerifyEmail:    true,
}

// IsCredentialOp reports whether op is one of the credential exchanges.
func IsCredentialOp(op string) bool {
	return credentialOps[op]
}

// State is the in-memory session.
type State struct {
	User            *User             `json:"user"`
	IsAuthenticated bool              `json:"isAuthenticated"`
	Pending         bool              `json:"pending"`
	InFlight        int               `json:"inFlight"`
	FieldErrors     map[string]string `json:"fieldErrors"`
	LastMessage     string            `json:"lastMessage,omitempty"`
}

// FieldError names one field error set or cleared locally.
type FieldError struct {
	Field   string
	Message string
}

// Slice owns the session state. It starts unauthenticated.
type Slice struct {
	mu      sync.RWMutex
	state   State
	tracker dispatch.Tracker
}

// NewSlice creates an unauthenticated session slice.
func NewSlice() *Slice {
	return &Slice{state: State{FieldErrors: map[string]string{}}}
}

// Snapshot returns a copy of the current state.
func (s *Slice) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.state
	out.Pending = s.tracker.Loading()
	out.InFlight = s.tracker.Pending()
	if s.state.User != nil {
		u := *s.state.User
		out.User = &u
	}
	out.FieldErrors = make(map[string]string, len(s.state.FieldErrors))
	for k, v := range s.state.FieldErrors {
		out.FieldErrors[k] = v
	}
	return out
}

// Reduce applies a lifecycle event.
func (s *Slice) Reduce(ev dispatch.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Observe(ev)
	st := &s.state

	switch ev.Phase {
	case dispatch.Started:
		if ev.Op == OpLogin || ev.Op == OpSignup {
			st.FieldErrors = map[string]string{}
			st.LastMessage = ""
		}
	case dispatch.Succeeded:
		s.succeed(ev)
	case dispatch.Failed:
		s.fail(ev)
	}
}

func (s *Slice) succeed(ev dispatch.Event) {
	st := &s.state
	switch ev.Op {
	case OpLogin:
		resp, _ := ev.Payload.(*AuthResponse)
		if resp == nil {
			return
		}
		st.User = resp.Data
		st.LastMessage = resp.Message
		st.IsAuthenticated = true
	case OpSignup:
		resp, _ := ev.Payload.(*AuthResponse)
		if resp == nil {
			return
		}
		st.User = resp.Data
		st.LastMessage = resp.Message
	case OpProfile:
		user, _ := ev.Payload.(*User)
		st.User = user
		st.IsAuthenticated = user != nil
	case OpForgotPassword:
		resp, _ := ev.Payload.(*SimpleResponse)
		st.User = nil
		st.IsAuthenticated = false
		if resp != nil {
			st.LastMessage = resp.Message
		}
	case OpResetPassword:
		resp, _ := ev.Payload.(*AuthResponse)
		if resp == nil {
			return
		}
		st.User = resp.Data
		st.IsAuthenticated = true
		st.LastMessage = resp.Message
		if st.LastMessage == "" {
			st.LastMessage = "Password reset successful"
		}
	case OpVerifyEmail:
		resp, _ := ev.Payload.(*client.Envelope[*User])
		if resp == nil {
			return
		}
		if resp.Data != nil {
			st.User = resp.Data
		}
		st.LastMessage = resp.Message
		if st.LastMessage == "" {
			st.LastMessage = "Email verified"
		}
	case OpLogout:
		st.User = nil
		st.IsAuthenticated = false
		st.FieldErrors = map[string]string{}
		st.LastMessage = ""
	case OpInvalidate:
		st.User = nil
		st.IsAuthenticated = false
		if msg, _ := ev.Payload.(string); msg != "" {
			st.LastMessage = msg
		}
	case OpClearErrors:
		st.FieldErrors = map[string]string{}
		st.LastMessage = ""
	case OpSetFieldError:
		if fe, ok := ev.Payload.(FieldError); ok {
			st.FieldErrors[fe.Field] = fe.Message
		}
	case OpClearFieldErr:
		if field, ok := ev.Payload.(string); ok {
			delete(st.FieldErrors, field)
		}
	}
}

func (s *Slice) fail(ev dispatch.Event) {
	st := &s.state
	switch ev.Op {
	case OpLogin:
		s.setError(ev.Err, "Login failed")
		st.IsAuthenticated = false
	case OpSignup:
		s.setError(ev.Err, "Signup failed")
	case OpProfile:
		s.setError(ev.Err, "Failed to load profile")
		if client.IsSessionInvalid(ev.Err) {
			st.User = nil
			st.IsAuthenticated = false
		}
	case OpForgotPassword:
		s.setError(ev.Err, "Failed sending email")
		st.User = nil
		st.IsAuthenticated = false
	case OpResetPassword:
		s.setError(ev.Err, "Reset password failed")
		st.User = nil
		st.IsAuthenticated = false
	case OpVerifyEmail:
		s.setError(ev.Err, "Email verification failed")
	}
}

// setError replaces the stored error record. The previous field errors are
// never merged with the new ones.
func (s *Slice) setError(err error, fallback string) {
	s.state.LastMessage = client.Message(err, fallback)
	s.state.FieldErrors = client.FieldErrors(err)
	if s.state.FieldErrors == nil {
		s.state.FieldErrors = map[string]string{}
	}
}
