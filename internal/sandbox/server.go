// Package sandbox is an in-memory backend that speaks the formdesk REST
// contract. It backs end-to-end tests and the `formdesk sandbox` command; it
// is not a production server.
package sandbox

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/alecgard/formdesk/internal/ratelimit"
)

// Options configures a Server.
type Options struct {
	JWTSecret      string        // random per process when empty
	TokenTTL       time.Duration // default 24h
	AllowedOrigins []string
	// RateLimit caps credential and public submit requests per client IP
	// within RateWindow. Zero disables throttling.
	RateLimit  int
	RateWindow time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// Server is the sandbox backend.
type Server struct {
	router   http.Handler
	store    *memStore
	secret   []byte
	tokenTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
	limiter  *ratelimit.Limiter
}

// NewServer builds the sandbox with all routes and middleware.
func NewServer(opts Options) (*Server, error) {
	s := &Server{
		tokenTTL: opts.TokenTTL,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = 24 * time.Hour
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.JWTSecret != "" {
		s.secret = []byte(opts.JWTSecret)
	} else {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("generating jwt secret: %w", err)
		}
		s.secret = []byte(hex.EncodeToString(b))
	}
	window := opts.RateWindow
	if window <= 0 {
		window = time.Minute
	}
	s.limiter = ratelimit.New(opts.RateLimit, window, ratelimit.WithClock(s.now))
	s.store = newMemStore(s.now)
	s.router = s.routes(opts.AllowedOrigins)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Outbox returns every mail the sandbox has "sent", oldest first.
func (s *Server) Outbox() []Mail {
	return s.store.mail()
}

func (s *Server) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestIDMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(slogRequestLogger(s.logger))
	r.Use(corsMiddleware(allowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	throttle := ratelimit.Middleware(s.limiter, ratelimit.ClientIP, func(r *http.Request) {
		s.logger.Warn("rate limited", "path", r.URL.Path, "client", ratelimit.ClientIP(r))
	})

	// Auth routes.
	r.Route("/api/auth", func(ar chi.Router) {
		ar.Group(func(cr chi.Router) {
			cr.Use(throttle)
			cr.Post("/signup", s.handleSignup)
			cr.Post("/login", s.handleLogin)
			cr.Patch("/forgot-password", s.handleForgotPassword)
			cr.Patch("/reset-password/{token}", s.handleResetPassword)
			cr.Post("/verify-email/{token}", s.handleVerifyEmail)
		})
		ar.With(s.requireUser).Get("/me", s.handleMe)
	})

	// Public submission endpoint.
	r.With(throttle).Post("/api/form/{formID}/submit", s.handleSubmit)

	// Owner routes.
	r.Route("/api/form", func(fr chi.Router) {
		fr.Use(s.requireUser)

		fr.Post("/", s.handleCreateForm)
		fr.Get("/", s.handleListForms)

		fr.Put("/fields/{fieldID}", s.handleUpdateField)
		fr.Delete("/fields/{fieldID}", s.handleDeleteField)

		fr.Get("/submissions/{submissionID}", s.handleGetSubmission)
		fr.Delete("/submissions/{submissionID}", s.handleDeleteSubmission)

		fr.Get("/{formID}", s.handleGetForm)
		fr.Put("/{formID}", s.handleUpdateForm)
		fr.Delete("/{formID}", s.handleDeleteForm)

		fr.Post("/{formID}/fields", s.handleCreateField)
		fr.Get("/{formID}/fields", s.handleListFields)
		fr.Patch("/{formID}/fields/reorder", s.handleReorderFields)

		fr.Get("/{formID}/submissions", s.handleListSubmissions)
		fr.Get("/{formID}/submissions/stats", s.handleSubmissionStats)
		fr.Get("/{formID}/submissions/export", s.handleExportSubmissions)
	})

	return r
}

// issueToken signs an HS256 token for the user.
func (s *Server) issueToken(userID int64) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// parseToken validates a token and returns the user id it was issued for.
func (s *Server) parseToken(raw string) (int64, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, errors.New("token subject is not a user id")
	}
	return id, nil
}
