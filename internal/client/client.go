// Package client is the HTTP adapter used by every resource API. It attaches
// the bearer token, encodes JSON and multipart payloads, and turns error
// responses into *APIError values.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds every call made by the adapter.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 1 << 20

// TokenSource supplies the bearer token for outbound calls. An empty token
// means the Authorization header is omitted.
type TokenSource interface {
	Token() string
}

// MetricsRecorder is an optional interface for recording call-level metrics.
type MetricsRecorder interface {
	IncClientRequests(method, pathPattern string, statusCode int)
	ObserveClientDuration(method, pathPattern string, seconds float64)
	IncTransportError(kind string)
}

// File is one attachment of a multipart request.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// Multipart describes a multipart/form-data body. Fields are written first,
// then every file under FileField.
type Multipart struct {
	Fields    map[string]string
	FileField string
	Files     []File
}

// Request describes one call to the backend.
type Request struct {
	Method string
	Path   string
	// Pattern is the route template used as a metrics label, e.g.
	// "/api/form/{id}". Path is used when empty.
	Pattern   string
	Query     url.Values
	Body      any
	Multipart *Multipart
	Header    http.Header
	// Raw skips JSON decoding and returns the response bytes as-is.
	Raw bool
}

// Response is the result of a successful call.
type Response struct {
	StatusCode  int
	ContentType string
	Filename    string
	Body        []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if v == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Client performs calls against the REST backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	userAgent  string
	metrics    MetricsRecorder
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithTokenSource sets where the bearer token is read from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithMetrics sets the optional metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger used for per-call debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs the call described by req.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if !req.Raw {
		httpReq.Header.Set("Accept", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)

	pattern := req.Pattern
	if pattern == "" {
		pattern = req.Path
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	latency := time.Since(start)
	if c.metrics != nil {
		c.metrics.ObserveClientDuration(req.Method, pattern, latency.Seconds())
	}
	if err != nil {
		kind := classifyTransportError(err)
		if c.metrics != nil {
			c.metrics.IncClientRequests(req.Method, pattern, 0)
			c.metrics.IncTransportError(kind)
		}
		c.logger.Debug("request failed",
			"method", req.Method,
			"path", req.Path,
			"error_kind", kind,
			"duration_ms", latency.Milliseconds(),
			"request_id", requestID,
		)
		return nil, &TransportError{Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.IncClientRequests(req.Method, pattern, resp.StatusCode)
	}
	c.logger.Debug("request",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"duration_ms", latency.Milliseconds(),
		"request_id", requestID,
	)

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		kind := classifyTransportError(err)
		if c.metrics != nil {
			c.metrics.IncTransportError(kind)
		}
		return nil, &TransportError{Kind: kind, Err: err}
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    filenameFromDisposition(resp.Header.Get("Content-Disposition")),
		Body:        data,
	}, nil
}

// JSON performs req and decodes the JSON response into out.
func (c *Client) JSON(ctx context.Context, req Request, out any) error {
	return DoJSON(ctx, c, req, out)
}

func encodeBody(req Request) (io.Reader, string, error) {
	if req.Multipart != nil {
		return encodeMultipart(req.Multipart)
	}
	if req.Body == nil {
		return nil, "", nil
	}
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(req.Body); err != nil {
		return nil, "", fmt.Errorf("encoding request body: %w", err)
	}
	return buf, "application/json", nil
}

func encodeMultipart(m *Multipart) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for name, value := range m.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("writing multipart field %q: %w", name, err)
		}
	}
	fileField := m.FileField
	if fileField == "" {
		fileField = "files"
	}
	for _, f := range m.Files {
		part, err := createFilePart(w, fileField, f)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("writing file %q: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

func createFilePart(w *multipart.Writer, field string, f File) (io.Writer, error) {
	if f.ContentType == "" {
		part, err := w.CreateFormFile(field, f.Name)
		if err != nil {
			return nil, fmt.Errorf("creating file part %q: %w", f.Name, err)
		}
		return part, nil
	}
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{
		mime.FormatMediaType("form-data", map[string]string{"name": field, "filename": f.Name}),
	}
	h["Content-Type"] = []string{f.ContentType}
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating file part %q: %w", f.Name, err)
	}
	return part, nil
}

// errorEnvelope is the server's error response shape.
type errorEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	// Some endpoints report field errors under "error".
	Error json.RawMessage `json:"error"`
}

func decodeError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var env errorEnvelope
	if err := json.Unmarshal(payload, &env); err == nil {
		apiErr.Status = env.Status
		apiErr.Message = env.Message
		apiErr.Errors = decodeFieldErrors(env.Errors)
		if len(apiErr.Errors) == 0 {
			apiErr.Errors = decodeFieldErrors(env.Error)
		}
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(payload))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// decodeFieldErrors accepts a {field: message} object and ignores any other
// shape.
func decodeFieldErrors(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

func filenameFromDisposition(v string) string {
	if v == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(v)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// Doer is the part of Client the resource APIs depend on.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// DoJSON performs req on d and decodes the JSON response into out.
func DoJSON(ctx context.Context, d Doer, req Request, out any) error {
	resp, err := d.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}
