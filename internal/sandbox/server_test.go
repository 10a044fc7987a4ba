package sandbox

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecgard/formdesk/internal/form"
	"github.com/alecgard/formdesk/internal/submission"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(Options{
		JWTSecret:      "test-secret",
		AllowedOrigins: []string{"http://localhost:3000"},
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return s
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// login creates a user directly in the store and signs a token for it.
func login(t *testing.T, s *Server, email string) string {
	t.Helper()
	u, err := s.store.createUser("Test", email, "secret1")
	require.NoError(t, err)
	token, err := s.issueToken(u.ID)
	require.NoError(t, err)
	return token
}

func TestHealth(t *testing.T) {
	s := testServer(t)
	rec := do(t, s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDEchoed(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/form", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/form", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequireUser(t *testing.T) {
	s := testServer(t)

	rec := do(t, s, http.MethodGet, "/api/form", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", decode(t, rec)["message"])

	rec = do(t, s, http.MethodGet, "/api/auth/me", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decode(t, rec)["message"])

	// A token signed with another secret is rejected.
	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1"}).SignedString([]byte("other"))
	require.NoError(t, err)
	rec = do(t, s, http.MethodGet, "/api/auth/me", other, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := login(t, s, "ada@example.com")
	rec = do(t, s, http.MethodGet, "/api/auth/me", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "ada@example.com", data["email"])
}

func TestExpiredToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewServer(Options{
		JWTSecret: "test-secret",
		TokenTTL:  time.Minute,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)
	token := login(t, s, "ada@example.com")

	now = now.Add(2 * time.Minute)
	rec := do(t, s, http.MethodGet, "/api/form", token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token expired", decode(t, rec)["message"])
}

func TestSignupValidation(t *testing.T) {
	s := testServer(t)
	rec := do(t, s, http.MethodPost, "/api/auth/signup", "", `{"name":"","email":"nope","password":"123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Validation failed", body["message"])
	errs := body["errors"].(map[string]any)
	assert.Contains(t, errs, "name")
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")

	rec = do(t, s, http.MethodPost, "/api/auth/signup", "", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	s := testServer(t)
	rec := do(t, s, http.MethodPatch, "/api/auth/forgot-password", "", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, s.Outbox())
}

func TestFormPagination(t *testing.T) {
	s := testServer(t)
	token := login(t, s, "ada@example.com")
	for i := 0; i < 5; i++ {
		rec := do(t, s, http.MethodPost, "/api/form", token, `{"title":"Form"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := do(t, s, http.MethodGet, "/api/form?page=3&limit=2", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data struct {
			Data       []form.Form `json:"data"`
			Total      int         `json:"total"`
			TotalPages int         `json:"totalPages"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Len(t, env.Data.Data, 1)
	assert.Equal(t, 5, env.Data.Total)
	assert.Equal(t, 3, env.Data.TotalPages)
	// Newest first, so the last page holds the oldest form.
	assert.Equal(t, int64(1), env.Data.Data[0].ID)

	rec = do(t, s, http.MethodGet, "/api/form?limit=500", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["errors"], "limit")

	// Past the end is an empty page, not an error.
	rec = do(t, s, http.MethodGet, "/api/form?page=9", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Empty(t, env.Data.Data)
}

func TestOwnershipIsNotFound(t *testing.T) {
	s := testServer(t)
	alice := login(t, s, "alice@example.com")
	bob := login(t, s, "bob@example.com")

	rec := do(t, s, http.MethodPost, "/api/form", alice, `{"title":"Mine"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/form/1", ""},
		{http.MethodPut, "/api/form/1", `{"title":"Stolen"}`},
		{http.MethodDelete, "/api/form/1", ""},
		{http.MethodGet, "/api/form/1/fields", ""},
		{http.MethodGet, "/api/form/1/submissions", ""},
		{http.MethodGet, "/api/form/1/submissions/export", ""},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := do(t, s, tc.method, tc.path, bob, tc.body)
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}

	rec = do(t, s, http.MethodGet, "/api/form/1", alice, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mine", decode(t, rec)["data"].(map[string]any)["title"])
}

func TestInvalidIDs(t *testing.T) {
	s := testServer(t)
	token := login(t, s, "ada@example.com")
	rec := do(t, s, http.MethodGet, "/api/form/abc", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, s, http.MethodGet, "/api/form/submissions/0", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportFormats(t *testing.T) {
	s := testServer(t)
	token := login(t, s, "ada@example.com")
	rec := do(t, s, http.MethodPost, "/api/form", token, `{"title":"Survey","isPublished":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/form/1/submissions/export?format=json", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "form_1_submissions.json")
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/form/1/submissions/export", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "form_1_submissions.csv")
	assert.Equal(t, "Submission ID,Submitted At,Files\n", rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/form/1/submissions/export?format=xml", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckAnswers(t *testing.T) {
	s := testServer(t)
	token := login(t, s, "ada@example.com")
	do(t, s, http.MethodPost, "/api/form", token, `{"title":"Survey","isPublished":true}`)
	rec := do(t, s, http.MethodPost, "/api/form/1/fields", token, `{"label":"Tags","fieldType":"checkbox","isRequired":true,"orderNumber":1,"options":["a","b"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	f, err := s.store.publicForm(1)
	require.NoError(t, err)

	errs := checkAnswers(f.Fields, nil)
	assert.Equal(t, "Tags is required", errs["1"])

	errs = checkAnswers(f.Fields, decodeAnswers(t, `[{"fieldId":1,"value":[]},{"fieldId":9,"value":"x"}]`))
	assert.Equal(t, "Tags is required", errs["1"])
	assert.Equal(t, "Unknown field", errs["9"])

	errs = checkAnswers(f.Fields, decodeAnswers(t, `[{"fieldId":1,"value":["a"]}]`))
	assert.Empty(t, errs)
}

func decodeAnswers(t *testing.T, raw string) []submission.Answer {
	t.Helper()
	var out []submission.Answer
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", formatValue(nil))
	assert.Equal(t, "a; b", formatValue([]any{"a", "b"}))
	assert.Equal(t, "3.5", formatValue(3.5))
	assert.Equal(t, "42", formatValue(float64(42)))
	assert.Equal(t, "true", formatValue(true))
}

func TestLoginIsThrottled(t *testing.T) {
	s, err := NewServer(Options{
		JWTSecret: "test-secret",
		RateLimit: 2,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	body := `{"email":"ghost@example.com","password":"secret1"}`
	for i := 0; i < 2; i++ {
		rec := do(t, s, http.MethodPost, "/api/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := do(t, s, http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests, try again later", decode(t, rec)["message"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Authenticated routes are not throttled.
	token := login(t, s, "ada@example.com")
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/auth/me", token, "").Code)
	}
}
