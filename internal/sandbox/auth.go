package sandbox

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alecgard/formdesk/internal/account"
)

const (
	mailVerify = "verify-email"
	mailReset  = "reset-password"

	resetTokenTTL  = time.Hour
	verifyTokenTTL = 24 * time.Hour
	minPasswordLen = 6
)

func validatePassword(errs map[string]string, password string) {
	if password == "" {
		errs["password"] = "Password is required"
	} else if len(password) < minPasswordLen {
		errs["password"] = "Password must be at least 6 characters"
	}
}

func validateEmail(errs map[string]string, email string) {
	if strings.TrimSpace(email) == "" {
		errs["email"] = "Email is required"
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		errs["email"] = "Email is invalid"
	}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req account.SignupRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	errs := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		errs["name"] = "Name is required"
	}
	validateEmail(errs, req.Email)
	validatePassword(errs, req.Password)
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	u, err := s.store.createUser(req.Name, req.Email, req.Password)
	if errors.Is(err, errEmailTaken) {
		writeJSON(w, http.StatusConflict, envelope{
			Status:  "error",
			Message: "Email already registered",
			Errors:  map[string]string{"email": "Email already registered"},
		})
		return
	}
	if err != nil {
		s.logger.Error("creating user", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	m := s.store.issueToken(mailVerify, uuid.NewString(), u, verifyTokenTTL)
	s.logger.Info("verification email queued", "to", m.To, "token", m.Token)

	writeData(w, http.StatusCreated, "Signup successful. Please verify your email.", u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req account.LoginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	errs := map[string]string{}
	validateEmail(errs, req.Email)
	if req.Password == "" {
		errs["password"] = "Password is required"
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	u, ok := s.store.authenticate(req.Email, req.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	s.writeAuth(w, "Login successful", u)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "", userFromContext(r.Context()))
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req account.ForgotPasswordRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	errs := map[string]string{}
	validateEmail(errs, req.Email)
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	u, ok := s.store.userByEmail(req.Email)
	if !ok {
		writeError(w, http.StatusNotFound, "No user found with that email")
		return
	}
	m := s.store.issueToken(mailReset, uuid.NewString(), u, resetTokenTTL)
	s.logger.Info("password reset email queued", "to", m.To, "token", m.Token)

	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "Password reset link sent to email"})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	errs := map[string]string{}
	validatePassword(errs, req.Password)
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	u, err := s.store.resetPassword(chi.URLParam(r, "token"), req.Password)
	if errors.Is(err, errInvalidToken) {
		writeError(w, http.StatusBadRequest, "Token is invalid or has expired")
		return
	}
	if err != nil {
		s.logger.Error("resetting password", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.writeAuth(w, "Password reset successful", u)
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.verifyEmail(chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Token is invalid or has expired")
		return
	}
	writeData(w, http.StatusOK, "Email verified successfully", u)
}

// writeAuth responds with the user and a fresh bearer token.
func (s *Server) writeAuth(w http.ResponseWriter, message string, u *account.User) {
	token, err := s.issueToken(u.ID)
	if err != nil {
		s.logger.Error("signing token", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: message, Data: u, Token: token})
}
