package account

import (
	"context"
	"net/http"
	"net/url"

	"github.com/alecgard/formdesk/internal/client"
)

// API maps the auth endpoints onto typed calls.
type API struct {
	c client.Doer
}

// NewAPI creates an auth API backed by c.
func NewAPI(c client.Doer) *API {
	return &API{c: c}
}

// Login exchanges credentials for a user and a bearer token.
func (a *API) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	err := client.DoJSON(ctx, a.c, client.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/login",
		Body:   req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Signup registers a new account.
func (a *API) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	var out AuthResponse
	err := client.DoJSON(ctx, a.c, client.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/signup",
		Body:   req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the profile of the token holder.
func (a *API) Me(ctx context.Context) (*User, error) {
	var out client.Envelope[*User]
	err := client.DoJSON(ctx, a.c, client.Request{
		Method: http.MethodGet,
		Path:   "/api/auth/me",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ForgotPassword asks the backend to email a reset link.
func (a *API) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (*SimpleResponse, error) {
	var out SimpleResponse
	err := client.DoJSON(ctx, a.c, client.Request{
		Method: http.MethodPatch,
		Path:   "/api/auth/forgot-password",
		Body:   req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword sets a new password using the emailed reset token.
func (a *API) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*AuthResponse, error) {
	var out AuthResponse
	err := client.DoJSON(ctx, a.c, client.Request{
		Method:  http.MethodPatch,
		Path:    "/api/auth/reset-password/" + url.PathEscape(req.ResetToken),
		Pattern: "/api/auth/reset-password/{token}",
		Body:    req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyEmail confirms an email address with the emailed token.
func (a *API) VerifyEmail(ctx context.Context, token string) (*client.Envelope[*User], error) {
	var out client.Envelope[*User]
	err := client.DoJSON(ctx, a.c, client.Request{
		Method:  http.MethodPost,
		Path:    "/api/auth/verify-email/" + url.PathEscape(token),
		Pattern: "/api/auth/verify-email/{token}",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
