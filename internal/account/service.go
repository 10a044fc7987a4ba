package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alecgard/formdesk/internal/client"
	"github.com/alecgard/formdesk/internal/dispatch"
	"github.com/alecgard/formdesk/internal/session"
)

// Validation errors returned before any call is made.
var (
	ErrEmailRequired    = errors.New("email is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrNameRequired     = errors.New("name is required")
	ErrTokenRequired    = errors.New("token is required")
	ErrNoToken          = errors.New("no authentication token found")
)

// Service issues the auth operations and keeps the durable token in step
// with the session slice.
type Service struct {
	api    *API
	slice  *Slice
	d      *dispatch.Dispatcher
	tokens session.Store
}

// NewService creates a Service.
func NewService(api *API, slice *Slice, d *dispatch.Dispatcher, tokens session.Store) *Service {
	return &Service{api: api, slice: slice, d: d, tokens: tokens}
}

// Slice returns the session slice.
func (s *Service) Slice() *Slice {
	return s.slice
}

// Login authenticates and persists the returned token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpLogin, func(ctx context.Context) (*AuthResponse, error) {
		if strings.TrimSpace(req.Email) == "" {
			return nil, ErrEmailRequired
		}
		if req.Password == "" {
			return nil, ErrPasswordRequired
		}
		resp, err := s.api.Login(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := s.persist(resp.Token); err != nil {
			return nil, err
		}
		return resp, nil
	})
}

// Signup registers an account and persists a token if the backend issued one.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpSignup, func(ctx context.Context) (*AuthResponse, error) {
		if strings.TrimSpace(req.Name) == "" {
			return nil, ErrNameRequired
		}
		if strings.TrimSpace(req.Email) == "" {
			return nil, ErrEmailRequired
		}
		if req.Password == "" {
			return nil, ErrPasswordRequired
		}
		resp, err := s.api.Signup(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := s.persist(resp.Token); err != nil {
			return nil, err
		}
		return resp, nil
	})
}

// Profile fetches the current user with the stored token.
func (s *Service) Profile(ctx context.Context) (*User, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpProfile, func(ctx context.Context) (*User, error) {
		if s.tokens.Token() == "" {
			return nil, ErrNoToken
		}
		return s.api.Me(ctx)
	})
}

// Bootstrap validates the stored token against the backend before protected
// work runs. Any rejection by the backend invalidates the session and clears
// the token. Transport failures leave the token in place but the session
// stays unauthenticated.
func (s *Service) Bootstrap(ctx context.Context) (*User, error) {
	user, err := s.Profile(ctx)
	if err == nil {
		return user, nil
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if invErr := s.Invalidate(client.Message(err, "Session expired")); invErr != nil {
			return nil, errors.Join(err, invErr)
		}
	}
	return nil, err
}

// ForgotPassword requests a password reset email.
func (s *Service) ForgotPassword(ctx context.Context, email string) (*SimpleResponse, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpForgotPassword, func(ctx context.Context) (*SimpleResponse, error) {
		if strings.TrimSpace(email) == "" {
			return nil, ErrEmailRequired
		}
		return s.api.ForgotPassword(ctx, ForgotPasswordRequest{Email: email})
	})
}

// ResetPassword sets a new password and persists the returned token.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*AuthResponse, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpResetPassword, func(ctx context.Context) (*AuthResponse, error) {
		if req.ResetToken == "" {
			return nil, ErrTokenRequired
		}
		if req.Password == "" {
			return nil, ErrPasswordRequired
		}
		resp, err := s.api.ResetPassword(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := s.persist(resp.Token); err != nil {
			return nil, err
		}
		return resp, nil
	})
}

// VerifyEmail confirms an email address.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*client.Envelope[*User], error) {
	return dispatch.Run(ctx, s.d, s.slice, OpVerifyEmail, func(ctx context.Context) (*client.Envelope[*User], error) {
		if token == "" {
			return nil, ErrTokenRequired
		}
		return s.api.VerifyEmail(ctx, token)
	})
}

// Logout clears the session and the stored token. No call is made.
func (s *Service) Logout() error {
	err := s.tokens.Clear()
	s.d.Emit(s.slice, dispatch.Event{Op: OpLogout, Phase: dispatch.Succeeded})
	if err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}

// Invalidate drops a session the backend no longer accepts.
func (s *Service) Invalidate(reason string) error {
	err := s.tokens.Clear()
	s.d.Emit(s.slice, dispatch.Event{Op: OpInvalidate, Phase: dispatch.Succeeded, Payload: reason})
	if err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}

// ClearErrors drops the stored message and field errors.
func (s *Service) ClearErrors() {
	s.d.Emit(s.slice, dispatch.Event{Op: OpClearErrors, Phase: dispatch.Succeeded})
}

// SetFieldError records a locally detected field error.
func (s *Service) SetFieldError(field, message string) {
	s.d.Emit(s.slice, dispatch.Event{Op: OpSetFieldError, Phase: dispatch.Succeeded, Payload: FieldError{Field: field, Message: message}})
}

// ClearFieldError removes the error recorded for field.
func (s *Service) ClearFieldError(field string) {
	s.d.Emit(s.slice, dispatch.Event{Op: OpClearFieldErr, Phase: dispatch.Succeeded, Payload: field})
}

func (s *Service) persist(token string) error {
	if token == "" {
		return nil
	}
	if err := s.tokens.SetToken(token); err != nil {
		return fmt.Errorf("persisting token: %w", err)
	}
	return nil
}
