package sandbox

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/alecgard/formdesk/internal/account"
	"github.com/alecgard/formdesk/internal/field"
	"github.com/alecgard/formdesk/internal/form"
	"github.com/alecgard/formdesk/internal/submission"
)

var (
	errNotFound     = errors.New("not found")
	errEmailTaken   = errors.New("email already registered")
	errInvalidToken = errors.New("token is invalid or has expired")
)

type userRecord struct {
	account.User
	passwordHash []byte
}

type oneTimeToken struct {
	userID  int64
	expires time.Time
}

// Mail is a message the sandbox would have emailed.
type Mail struct {
	To     string    `json:"to"`
	Kind   string    `json:"kind"` // verify-email | reset-password
	Token  string    `json:"token"`
	SentAt time.Time `json:"sentAt"`
}

// memStore is the whole backend state. Every method takes the lock.
type memStore struct {
	mu  sync.Mutex
	now func() time.Time

	nextUser, nextForm, nextField, nextSub int64

	users       map[int64]*userRecord
	byEmail     map[string]int64
	forms       map[int64]*form.Form
	fields      map[int64]*field.Field
	submissions map[int64]*submission.Submission

	resetTokens  map[string]oneTimeToken
	verifyTokens map[string]oneTimeToken
	outbox       []Mail
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		now:          now,
		users:        make(map[int64]*userRecord),
		byEmail:      make(map[string]int64),
		forms:        make(map[int64]*form.Form),
		fields:       make(map[int64]*field.Field),
		submissions:  make(map[int64]*submission.Submission),
		resetTokens:  make(map[string]oneTimeToken),
		verifyTokens: make(map[string]oneTimeToken),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *memStore) createUser(name, email, password string) (*account.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email = normalizeEmail(email)
	if _, ok := s.byEmail[email]; ok {
		return nil, errEmailTaken
	}
	s.nextUser++
	now := s.now()
	u := &userRecord{
		User: account.User{
			ID:        s.nextUser,
			Name:      strings.TrimSpace(name),
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: hash,
	}
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	out := u.User
	return &out, nil
}

// authenticate returns the user when password matches.
func (s *memStore) authenticate(email, password string) (*account.User, bool) {
	s.mu.Lock()
	id, ok := s.byEmail[normalizeEmail(email)]
	var rec *userRecord
	if ok {
		rec = s.users[id]
	}
	s.mu.Unlock()

	if rec == nil {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(password)) != nil {
		return nil, false
	}
	out := rec.User
	return &out, true
}

func (s *memStore) user(id int64) (*account.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return nil, false
	}
	out := rec.User
	return &out, true
}

func (s *memStore) userByEmail(email string) (*account.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, false
	}
	out := s.users[id].User
	return &out, true
}

// issueToken records a one-time token of kind for the user and queues the
// mail carrying it.
func (s *memStore) issueToken(kind, token string, u *account.User, ttl time.Duration) Mail {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t := oneTimeToken{userID: u.ID, expires: now.Add(ttl)}
	if kind == mailReset {
		s.resetTokens[token] = t
	} else {
		s.verifyTokens[token] = t
	}
	m := Mail{To: u.Email, Kind: kind, Token: token, SentAt: now}
	s.outbox = append(s.outbox, m)
	return m
}

func (s *memStore) consume(tokens map[string]oneTimeToken, token string) (*userRecord, error) {
	t, ok := tokens[token]
	if !ok {
		return nil, errInvalidToken
	}
	delete(tokens, token)
	if s.now().After(t.expires) {
		return nil, errInvalidToken
	}
	rec, ok := s.users[t.userID]
	if !ok {
		return nil, errInvalidToken
	}
	return rec, nil
}

func (s *memStore) resetPassword(token, password string) (*account.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.consume(s.resetTokens, token)
	if err != nil {
		return nil, err
	}
	rec.passwordHash = hash
	rec.UpdatedAt = s.now()
	out := rec.User
	return &out, nil
}

func (s *memStore) verifyEmail(token string) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.consume(s.verifyTokens, token)
	if err != nil {
		return nil, err
	}
	rec.IsEmailVerified = true
	rec.UpdatedAt = s.now()
	out := rec.User
	return &out, nil
}

func (s *memStore) mail() []Mail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Mail(nil), s.outbox...)
}

// --- forms ---

func (s *memStore) createForm(owner int64, in form.CreateInput) *form.Form {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextForm++
	now := s.now()
	f := &form.Form{
		ID:          s.nextForm,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		ExpiresAt:   in.ExpiresAt,
		CreatedBy:   owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.IsPublished != nil {
		f.IsPublished = *in.IsPublished
	}
	s.forms[f.ID] = f
	out := *f
	return &out
}

// listForms returns the owner's forms, newest first.
func (s *memStore) listForms(owner int64) []form.Form {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []form.Form
	for _, f := range s.forms {
		if f.CreatedBy == owner {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// ownedForm returns the form when it belongs to owner. Forms of other users
// are reported as missing.
func (s *memStore) ownedForm(owner, id int64) (*form.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownedFormLocked(owner, id)
}

func (s *memStore) ownedFormLocked(owner, id int64) (*form.Form, error) {
	f, ok := s.forms[id]
	if !ok || f.CreatedBy != owner {
		return nil, errNotFound
	}
	out := *f
	out.Fields = s.formFieldsLocked(id)
	return &out, nil
}

func (s *memStore) updateForm(owner, id int64, in form.UpdateInput) (*form.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.forms[id]
	if !ok || f.CreatedBy != owner {
		return nil, errNotFound
	}
	if in.Title != nil {
		f.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		f.Description = *in.Description
	}
	if in.IsPublished != nil {
		f.IsPublished = *in.IsPublished
	}
	if in.ExpiresAt != nil {
		f.ExpiresAt = in.ExpiresAt
	}
	f.UpdatedAt = s.now()
	return s.ownedFormLocked(owner, id)
}

// deleteForm removes the form with its fields and submissions.
func (s *memStore) deleteForm(owner, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.forms[id]
	if !ok || f.CreatedBy != owner {
		return errNotFound
	}
	delete(s.forms, id)
	for fid, fl := range s.fields {
		if fl.FormID == id {
			delete(s.fields, fid)
		}
	}
	for sid, sub := range s.submissions {
		if sub.FormID == id {
			delete(s.submissions, sid)
		}
	}
	return nil
}

// publicForm returns a form by id regardless of owner, for submissions.
func (s *memStore) publicForm(id int64) (*form.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.forms[id]
	if !ok {
		return nil, errNotFound
	}
	out := *f
	out.Fields = s.formFieldsLocked(id)
	return &out, nil
}

// --- fields ---

func (s *memStore) formFieldsLocked(formID int64) []field.Field {
	out := []field.Field{}
	for _, fl := range s.fields {
		if fl.FormID == formID {
			c := *fl
			c.Options = append([]string(nil), fl.Options...)
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	field.SortByOrder(out)
	return out
}

func (s *memStore) listFields(owner, formID int64) ([]field.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.ownedFormLocked(owner, formID); err != nil {
		return nil, err
	}
	return s.formFieldsLocked(formID), nil
}

func (s *memStore) createField(owner, formID int64, in field.CreateInput) (*field.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ownedFormLocked(owner, formID); err != nil {
		return nil, err
	}
	s.nextField++
	now := s.now()
	fl := &field.Field{
		ID:          s.nextField,
		FormID:      formID,
		FieldType:   in.FieldType,
		Label:       strings.TrimSpace(in.Label),
		Placeholder: in.Placeholder,
		Required:    in.IsRequired,
		Options:     append([]string(nil), in.Options...),
		Order:       in.OrderNumber,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.fields[fl.ID] = fl
	out := *fl
	return &out, nil
}

// ownedFieldLocked returns the stored field when its form belongs to owner.
func (s *memStore) ownedFieldLocked(owner, fieldID int64) (*field.Field, error) {
	fl, ok := s.fields[fieldID]
	if !ok {
		return nil, errNotFound
	}
	if _, err := s.ownedFormLocked(owner, fl.FormID); err != nil {
		return nil, errNotFound
	}
	return fl, nil
}

func (s *memStore) updateField(owner, fieldID int64, in field.UpdateInput) (*field.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fl, err := s.ownedFieldLocked(owner, fieldID)
	if err != nil {
		return nil, err
	}
	if in.FieldType != nil {
		fl.FieldType = *in.FieldType
	}
	if in.Label != nil {
		fl.Label = strings.TrimSpace(*in.Label)
	}
	if in.Placeholder != nil {
		fl.Placeholder = *in.Placeholder
	}
	if in.IsRequired != nil {
		fl.Required = *in.IsRequired
	}
	if in.OrderNumber != nil {
		fl.Order = *in.OrderNumber
	}
	if in.Options != nil {
		fl.Options = append([]string(nil), (*in.Options)...)
	}
	if !fl.FieldType.NeedsOptions() {
		fl.Options = nil
	}
	fl.UpdatedAt = s.now()
	out := *fl
	return &out, nil
}

func (s *memStore) deleteField(owner, fieldID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ownedFieldLocked(owner, fieldID); err != nil {
		return err
	}
	delete(s.fields, fieldID)
	return nil
}

// reorderFields applies every order or none. A field that is not part of
// the form fails the whole batch.
func (s *memStore) reorderFields(owner, formID int64, orders []field.Order) ([]field.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ownedFormLocked(owner, formID); err != nil {
		return nil, err
	}
	for _, o := range orders {
		fl, ok := s.fields[o.FieldID]
		if !ok || fl.FormID != formID {
			return nil, errNotFound
		}
	}
	now := s.now()
	for _, o := range orders {
		fl := s.fields[o.FieldID]
		fl.Order = o.Order
		fl.UpdatedAt = now
	}
	return s.formFieldsLocked(formID), nil
}

// --- submissions ---

func (s *memStore) addSubmission(formID int64, data []submission.Answer, files []string) *submission.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	sub := &submission.Submission{
		ID:          s.nextSub,
		FormID:      formID,
		Data:        data,
		Files:       files,
		SubmittedAt: s.now(),
	}
	s.submissions[sub.ID] = sub
	out := *sub
	return &out
}

// listSubmissions returns the form's submissions, newest first.
func (s *memStore) listSubmissions(owner, formID int64) ([]submission.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ownedFormLocked(owner, formID); err != nil {
		return nil, err
	}
	out := []submission.Submission{}
	for _, sub := range s.submissions {
		if sub.FormID == formID {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memStore) ownedSubmissionLocked(owner, id int64) (*submission.Submission, error) {
	sub, ok := s.submissions[id]
	if !ok {
		return nil, errNotFound
	}
	if _, err := s.ownedFormLocked(owner, sub.FormID); err != nil {
		return nil, errNotFound
	}
	return sub, nil
}

func (s *memStore) getSubmission(owner, id int64) (*submission.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, err := s.ownedSubmissionLocked(owner, id)
	if err != nil {
		return nil, err
	}
	out := *sub
	return &out, nil
}

func (s *memStore) deleteSubmission(owner, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ownedSubmissionLocked(owner, id); err != nil {
		return err
	}
	delete(s.submissions, id)
	return nil
}

// stats counts the form's submissions received today (UTC), in the last 7
// days and in the last 30 days.
func (s *memStore) stats(owner, formID int64) (*submission.Stats, error) {
	subs, err := s.listSubmissions(owner, formID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)

	st := &submission.Stats{TotalSubmissions: len(subs)}
	for _, sub := range subs {
		at := sub.SubmittedAt.UTC()
		if !at.Before(startOfDay) {
			st.TodaySubmissions++
		}
		if at.After(weekAgo) {
			st.WeekSubmissions++
		}
		if at.After(monthAgo) {
			st.MonthSubmissions++
		}
	}
	return st, nil
}
