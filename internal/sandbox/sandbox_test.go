package sandbox_test

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecgard/formdesk/internal/account"
	"github.com/alecgard/formdesk/internal/client"
	"github.com/alecgard/formdesk/internal/field"
	"github.com/alecgard/formdesk/internal/form"
	"github.com/alecgard/formdesk/internal/sandbox"
	"github.com/alecgard/formdesk/internal/session"
	"github.com/alecgard/formdesk/internal/store"
	"github.com/alecgard/formdesk/internal/submission"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type env struct {
	srv    *sandbox.Server
	url    string
	clock  *clock
	logger *slog.Logger
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	srv, err := sandbox.NewServer(sandbox.Options{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
		Logger:    logger,
		Now:       c.Now,
	})
	require.NoError(t, err)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	return &env{srv: srv, url: hs.URL, clock: c, logger: logger}
}

func (e *env) newStore(t *testing.T, tokens session.Store) *store.Store {
	t.Helper()
	s := store.New(
		client.New(e.url, client.WithTokenSource(tokens), client.WithLogger(e.logger)),
		tokens,
		store.WithLogger(e.logger),
		store.WithExportDir(t.TempDir()),
	)
	t.Cleanup(s.Close)
	return s
}

func (e *env) lastMail(t *testing.T, kind string) sandbox.Mail {
	t.Helper()
	box := e.srv.Outbox()
	for i := len(box) - 1; i >= 0; i-- {
		if box[i].Kind == kind {
			return box[i]
		}
	}
	t.Fatalf("no %s mail sent", kind)
	return sandbox.Mail{}
}

// signupAndLogin registers a verified user and logs in.
func (e *env) signupAndLogin(t *testing.T, s *store.Store, email string) {
	t.Helper()
	ctx := context.Background()
	_, err := s.Auth.Signup(ctx, account.SignupRequest{Name: "Ada", Email: email, Password: "secret1"})
	require.NoError(t, err)
	_, err = s.Auth.VerifyEmail(ctx, e.lastMail(t, "verify-email").Token)
	require.NoError(t, err)
	_, err = s.Auth.Login(ctx, account.LoginRequest{Email: email, Password: "secret1"})
	require.NoError(t, err)
}

func TestAuthFlow(t *testing.T) {
	e := newEnv(t)
	tokens := session.NewMemoryStore("")
	s := e.newStore(t, tokens)
	ctx := context.Background()

	_, err := s.Auth.Signup(ctx, account.SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.False(t, s.Snapshot().Auth.IsAuthenticated)
	assert.Empty(t, tokens.Token())

	_, err = s.Auth.Signup(ctx, account.SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, client.KindConflict, client.Classify(err))
	assert.Equal(t, "Email already registered", s.Snapshot().Auth.FieldErrors["email"])

	verified, err := s.Auth.VerifyEmail(ctx, e.lastMail(t, "verify-email").Token)
	require.NoError(t, err)
	assert.True(t, verified.Data.IsEmailVerified)

	_, err = s.Auth.Login(ctx, account.LoginRequest{Email: "ada@example.com", Password: "wrong-pw"})
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", s.Snapshot().Auth.LastMessage)

	_, err = s.Auth.Login(ctx, account.LoginRequest{Email: "ADA@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.Token())

	user, err := s.Auth.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.True(t, s.Snapshot().Auth.IsAuthenticated)

	_, err = s.Auth.ForgotPassword(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, s.Snapshot().Auth.IsAuthenticated)

	reset := e.lastMail(t, "reset-password")
	_, err = s.Auth.ResetPassword(ctx, account.ResetPasswordRequest{ResetToken: reset.Token, Password: "newpass1"})
	require.NoError(t, err)
	assert.True(t, s.Snapshot().Auth.IsAuthenticated)

	// Reset tokens are single use.
	_, err = s.Auth.ResetPassword(ctx, account.ResetPasswordRequest{ResetToken: reset.Token, Password: "again12"})
	require.Error(t, err)
	assert.Equal(t, "Token is invalid or has expired", s.Snapshot().Auth.LastMessage)

	require.NoError(t, s.Auth.Logout())
	assert.Empty(t, tokens.Token())
}

func TestExpiredTokenInvalidatesSession(t *testing.T) {
	e := newEnv(t)
	tokens := session.NewMemoryStore("")
	s := e.newStore(t, tokens)
	e.signupAndLogin(t, s, "ada@example.com")

	e.clock.Advance(2 * time.Hour)

	_, err := s.Forms.List(context.Background(), form.ListParams{})
	require.Error(t, err)
	assert.Equal(t, client.KindUnauthorized, client.Classify(err))

	st := s.Snapshot()
	assert.Equal(t, "Token expired", st.Forms.Error)
	assert.False(t, st.Auth.IsAuthenticated)
	assert.Empty(t, tokens.Token())
}

func TestBootstrapWithGarbageToken(t *testing.T) {
	e := newEnv(t)
	tokens := session.NewMemoryStore("not-a-jwt")
	s := e.newStore(t, tokens)

	_, err := s.Auth.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Empty(t, tokens.Token())
	assert.False(t, s.Snapshot().Auth.IsAuthenticated)
}

func TestFormBuilderFlow(t *testing.T) {
	e := newEnv(t)
	owner := e.newStore(t, session.NewMemoryStore(""))
	e.signupAndLogin(t, owner, "owner@example.com")
	ctx := context.Background()

	published := true
	f, err := owner.Forms.Create(ctx, form.CreateInput{Title: "Survey", IsPublished: &published})
	require.NoError(t, err)

	name, err := owner.Fields.Create(ctx, f.ID, field.CreateInput{Label: "Name", FieldType: field.TypeText, IsRequired: true, OrderNumber: 1})
	require.NoError(t, err)
	colour, err := owner.Fields.Create(ctx, f.ID, field.CreateInput{
		Label: "Colour", FieldType: field.TypeCheckbox, OrderNumber: 2,
		Options: field.ParseOptions("Red, Blue, Green"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Red", "Blue", "Green"}, colour.Options)

	// Choice fields need options server-side.
	_, err = owner.Fields.Create(ctx, f.ID, field.CreateInput{Label: "Size", FieldType: field.TypeSelect, OrderNumber: 3})
	require.Error(t, err)
	assert.Equal(t, client.KindValidation, client.Classify(err))
	assert.Contains(t, owner.Snapshot().Fields.FieldErrors, "options")

	// Public submissions need no token.
	public := e.newStore(t, session.NewMemoryStore(""))
	_, err = public.Submissions.Submit(ctx, f.ID, []submission.Answer{{FieldID: colour.ID, Value: []string{"Red"}}}, nil)
	require.Error(t, err)
	assert.Equal(t, "Name is required", public.Snapshot().Submissions.FieldErrors[strconvID(name.ID)])

	for _, who := range []string{"Ada", "Grace"} {
		_, err = public.Submissions.Submit(ctx, f.ID,
			[]submission.Answer{{FieldID: name.ID, Value: who}, {FieldID: colour.ID, Value: []string{"Red", "Blue"}}},
			[]client.File{{Name: strings.ToLower(who) + ".txt", Content: strings.NewReader("cv")}},
		)
		require.NoError(t, err)
	}
	assert.Empty(t, public.Snapshot().Submissions.Error)

	page, err := owner.Submissions.List(ctx, submission.ListParams{FormID: f.ID, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
	st := owner.Snapshot().Submissions
	assert.Equal(t, client.Pagination{Page: 1, Limit: 1, Total: 2, TotalPages: 2}, st.Pagination)
	assert.Equal(t, []string{"grace.txt"}, st.Submissions[0].Files)

	stats, err := owner.Submissions.Stats(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSubmissions)
	assert.Equal(t, 2, stats.TodaySubmissions)

	res, err := owner.Submissions.Export(ctx, f.ID, "csv")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Path, "form_"+strconvID(f.ID)+"_submissions.csv"))
	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Submission ID", "Submitted At", "Name", "Colour", "Files"}, rows[0])
	assert.Equal(t, "Red; Blue", rows[1][3])

	_, err = owner.Fields.Reorder(ctx, f.ID, []field.Order{{FieldID: name.ID, Order: 2}, {FieldID: colour.ID, Order: 1}})
	require.NoError(t, err)
	fields := owner.Snapshot().Fields.Fields
	require.Len(t, fields, 2)
	assert.Equal(t, colour.ID, fields[0].ID)

	full, err := owner.Forms.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Len(t, full.Fields, 2)

	require.NoError(t, owner.Forms.Delete(ctx, f.ID))
	_, err = owner.Forms.Get(ctx, f.ID)
	require.Error(t, err)
	assert.Equal(t, client.KindNotFound, client.Classify(err))
	assert.NotEmpty(t, owner.Snapshot().Auth.User, "not found must not end the session")
}

func TestFormsAreIsolatedPerOwner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.newStore(t, session.NewMemoryStore(""))
	e.signupAndLogin(t, alice, "alice@example.com")
	bob := e.newStore(t, session.NewMemoryStore(""))
	e.signupAndLogin(t, bob, "bob@example.com")

	f, err := alice.Forms.Create(ctx, form.CreateInput{Title: "Private"})
	require.NoError(t, err)

	_, err = bob.Forms.Get(ctx, f.ID)
	require.Error(t, err)
	assert.Equal(t, client.KindNotFound, client.Classify(err))

	page, err := bob.Forms.List(ctx, form.ListParams{})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
}

func TestUnpublishedFormRejectsSubmissions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.newStore(t, session.NewMemoryStore(""))
	e.signupAndLogin(t, owner, "owner@example.com")

	f, err := owner.Forms.Create(ctx, form.CreateInput{Title: "Draft"})
	require.NoError(t, err)

	public := e.newStore(t, session.NewMemoryStore(""))
	_, err = public.Submissions.Submit(ctx, f.ID, nil, nil)
	require.Error(t, err)
	assert.Equal(t, "Form is not accepting submissions", public.Snapshot().Submissions.Error)
}

func TestConcurrentDeletesAgainstSandbox(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.newStore(t, session.NewMemoryStore(""))
	e.signupAndLogin(t, s, "ada@example.com")

	var ids []int64
	for _, title := range []string{"A", "B", "C", "D"} {
		f, err := s.Forms.Create(ctx, form.CreateInput{Title: title})
		require.NoError(t, err)
		ids = append(ids, f.ID)
	}
	_, err := s.Forms.List(ctx, form.ListParams{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range ids[:3] {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			assert.NoError(t, s.Forms.Delete(ctx, id))
		}(id)
	}
	wg.Wait()

	st := s.Snapshot().Forms
	assert.False(t, st.Loading)
	require.Len(t, st.Forms, 1)
	assert.Equal(t, ids[3], st.Forms[0].ID)
}

func strconvID(id int64) string {
	return strconv.FormatInt(id, 10)
}
