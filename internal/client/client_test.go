package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

type fakeRecorder struct {
	requests  []int
	transport []string
}

func (f *fakeRecorder) IncClientRequests(_, _ string, statusCode int) {
	f.requests = append(f.requests, statusCode)
}
func (f *fakeRecorder) ObserveClientDuration(_, _ string, _ float64) {}
func (f *fakeRecorder) IncTransportError(kind string)                { f.transport = append(f.transport, kind) }

func TestDo_AttachesBearerToken(t *testing.T) {
	var gotAuth, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"id":1}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithTokenSource(staticToken("abc")))
	var out struct {
		Status string `json:"status"`
		Data   struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	err := c.JSON(context.Background(), Request{Method: http.MethodGet, Path: "/api/auth/me"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "Bearer abc", gotAuth)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, int64(1), out.Data.ID)
}

func TestDo_OmitsAuthorizationWithoutToken(t *testing.T) {
	var hadAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadAuth = r.Header["Authorization"]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, WithTokenSource(staticToken("")))
	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/form/1/submit"})
	require.NoError(t, err)
	assert.False(t, hadAuth)
}

func TestDo_EncodesJSONBodyAndQuery(t *testing.T) {
	var gotBody map[string]any
	var gotQuery, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		gotQuery = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/api/form",
		Query:  map[string][]string{"page": {"2"}},
		Body:   map[string]any{"title": "Survey"},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, "page=2", gotQuery)
	assert.Equal(t, "Survey", gotBody["title"])
}

func TestDo_DecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"fail","message":"Validation failed","errors":{"email":"Email is required"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/auth/login"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "fail", apiErr.Status)
	assert.Equal(t, "Validation failed", apiErr.Message)
	assert.Equal(t, "Email is required", apiErr.Errors["email"])
	assert.Equal(t, KindValidation, Classify(err))
	assert.Equal(t, map[string]string{"email": "Email is required"}, FieldErrors(err))
}

func TestDo_DecodesLegacyErrorKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"status":"fail","message":"Signup failed","error":{"name":"Name is required"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/auth/signup"})
	assert.Equal(t, "Name is required", FieldErrors(err)["name"])
}

func TestDo_PlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/form"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "upstream exploded", apiErr.Message)
	assert.Equal(t, KindServer, Classify(err))
}

func TestDo_TimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	rec := &fakeRecorder{}
	c := New(srv.URL, WithTimeout(50*time.Millisecond), WithMetrics(rec))
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/form"})
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "timeout", te.Kind)
	assert.Equal(t, KindTransport, Classify(err))
	assert.Equal(t, "Failed to fetch forms", Message(err, "Failed to fetch forms"))
	assert.Equal(t, []string{"timeout"}, rec.transport)
}

func TestDo_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	assert.Equal(t, KindTransport, Classify(err))
}

func TestDo_RawResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="export.csv"`)
		_, _ = w.Write([]byte("id,value\n1,a\n"))
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Do(context.Background(), Request{Method: http.MethodGet, Path: "/x", Raw: true})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", resp.ContentType)
	assert.Equal(t, "export.csv", resp.Filename)
	assert.Equal(t, "id,value\n1,a\n", string(resp.Body))
}

func TestDo_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, `[{"fieldId":1,"value":"x"}]`, r.FormValue("submissionData"))

		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		assert.Equal(t, "a.txt", files[0].Filename)
		assert.Equal(t, "image/png", files[1].Header.Get("Content-Type"))

		f, err := files[0].Open()
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "hello", string(data))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/api/form/1/submit",
		Multipart: &Multipart{
			Fields: map[string]string{"submissionData": `[{"fieldId":1,"value":"x"}]`},
			Files: []File{
				{Name: "a.txt", Content: strings.NewReader("hello")},
				{Name: "b.png", ContentType: "image/png", Content: strings.NewReader("png")},
			},
		},
	})
	require.NoError(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"unauthorized", &APIError{StatusCode: 401}, KindUnauthorized},
		{"forbidden", &APIError{StatusCode: 403}, KindUnauthorized},
		{"not found", &APIError{StatusCode: 404}, KindNotFound},
		{"conflict", &APIError{StatusCode: 409}, KindConflict},
		{"bad request without fields", &APIError{StatusCode: 400}, KindServer},
		{"server", &APIError{StatusCode: 503}, KindServer},
		{"transport", &TransportError{Kind: "dns", Err: errors.New("x")}, KindTransport},
		{"plain", errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestIsSessionInvalid(t *testing.T) {
	assert.True(t, IsSessionInvalid(&APIError{StatusCode: 401}))
	assert.True(t, IsSessionInvalid(&APIError{StatusCode: 400, Status: "error"}))
	assert.False(t, IsSessionInvalid(&APIError{StatusCode: 500, Status: "error"}))
	assert.False(t, IsSessionInvalid(&TransportError{Kind: "timeout", Err: errors.New("x")}))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Form not found", Message(&APIError{StatusCode: 404, Message: "Form not found"}, "fallback"))
	assert.Equal(t, "fallback", Message(&APIError{StatusCode: 404}, "fallback"))
	assert.Equal(t, "label is required", Message(errors.New("label is required"), "fallback"))
}
