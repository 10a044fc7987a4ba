package form

import (
	"sync"

	"github.com/alecgard/formdesk/internal/client"
	"github.com/alecgard/formdesk/internal/dispatch"
	"github.com/alecgard/formdesk/internal/field"
)

// Operation names owned by the form slice.
const (
	OpCreate       = "forms/create"
	OpFetchAll     = "forms/fetchAll"
	OpFetchByID    = "forms/fetchById"
	OpUpdate       = "forms/update"
	OpDelete       = "forms/delete"
	OpClearCurrent = "forms/clearCurrent"
	OpClearError   = "forms/clearError"
)

var failureMessages = map[string]string{
	OpCreate:    "Failed to create form",
	OpFetchAll:  "Failed to fetch forms",
	OpFetchByID: "Failed to fetch form",
	OpUpdate:    "Failed to update form",
	OpDelete:    "Failed to delete form",
}

// State is a snapshot of the form slice.
type State struct {
	Forms       []Form            `json:"forms"`
	Current     *Form             `json:"currentForm"`
	Loading     bool              `json:"loading"`
	Pending     int               `json:"pending"`
	Error       string            `json:"error,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	Pagination  client.Pagination `json:"pagination"`
}

// Slice mirrors one page of the caller's forms plus a separately fetched
// current form.
type Slice struct {
	mu          sync.RWMutex
	forms       []Form
	current     *Form
	err         string
	fieldErrors map[string]string
	pagination  client.Pagination
	tracker     dispatch.Tracker
}

// NewSlice creates an empty form slice.
func NewSlice() *Slice {
	return &Slice{forms: []Form{}, pagination: client.DefaultPagination()}
}

// Snapshot returns a copy of the current state.
func (s *Slice) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := State{
		Forms:      make([]Form, len(s.forms)),
		Loading:    s.tracker.Loading(),
		Pending:    s.tracker.Pending(),
		Error:      s.err,
		Pagination: s.pagination,
	}
	for i, f := range s.forms {
		out.Forms[i] = cloneForm(f)
	}
	if s.current != nil {
		c := cloneForm(*s.current)
		out.Current = &c
	}
	if len(s.fieldErrors) > 0 {
		out.FieldErrors = make(map[string]string, len(s.fieldErrors))
		for k, v := range s.fieldErrors {
			out.FieldErrors[k] = v
		}
	}
	return out
}

// Reduce applies a lifecycle event.
func (s *Slice) Reduce(ev dispatch.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Observe(ev)

	switch ev.Phase {
	case dispatch.Started:
		s.err = ""
		s.fieldErrors = nil
	case dispatch.Failed:
		s.err = client.Message(ev.Err, failureMessages[ev.Op])
		s.fieldErrors = client.FieldErrors(ev.Err)
	case dispatch.Succeeded:
		s.succeed(ev)
	}
}

func (s *Slice) succeed(ev dispatch.Event) {
	switch ev.Op {
	case OpFetchAll:
		page, ok := ev.Payload.(*client.Page[Form])
		if !ok || page == nil {
			return
		}
		forms := make([]Form, len(page.Data))
		for i, f := range page.Data {
			forms[i] = cloneForm(f)
		}
		s.forms = forms
		s.pagination = page.Pagination()
	case OpCreate:
		f, ok := ev.Payload.(*Form)
		if !ok || f == nil {
			return
		}
		s.forms = append([]Form{cloneForm(*f)}, s.forms...)
	case OpFetchByID:
		f, ok := ev.Payload.(*Form)
		if !ok || f == nil {
			return
		}
		c := cloneForm(*f)
		s.current = &c
	case OpUpdate:
		f, ok := ev.Payload.(*Form)
		if !ok || f == nil {
			return
		}
		for i := range s.forms {
			if s.forms[i].ID == f.ID {
				s.forms[i] = cloneForm(*f)
				break
			}
		}
		if s.current != nil && s.current.ID == f.ID {
			c := cloneForm(*f)
			s.current = &c
		}
	case OpDelete:
		id, ok := ev.Payload.(int64)
		if !ok {
			return
		}
		kept := s.forms[:0:0]
		for _, f := range s.forms {
			if f.ID != id {
				kept = append(kept, f)
			}
		}
		s.forms = kept
		if s.current != nil && s.current.ID == id {
			s.current = nil
		}
	case OpClearCurrent:
		s.current = nil
	case OpClearError:
		s.err = ""
		s.fieldErrors = nil
	}
}

func cloneForm(f Form) Form {
	if f.ExpiresAt != nil {
		t := *f.ExpiresAt
		f.ExpiresAt = &t
	}
	if f.Fields != nil {
		fields := make([]field.Field, len(f.Fields))
		for i, fl := range f.Fields {
			if fl.Options != nil {
				fl.Options = append([]string(nil), fl.Options...)
			}
			fields[i] = fl
		}
		f.Fields = fields
	}
	return f
}
