package field

import (
	"sync"

	"github.com/alecgard/formdesk/internal/client"
	"github.com/alecgard/formdesk/internal/dispatch"
)

// Operation names owned by the field slice.
const (
	OpCreate     = "formFields/create"
	OpFetchAll   = "formFields/fetchAll"
	OpUpdate     = "formFields/update"
	OpDelete     = "formFields/delete"
	OpReorder    = "formFields/reorder"
	OpClearError = "formFields/clearError"
)

var failureMessages = map[string]string{
	OpCreate:   "Failed to create form field",
	OpFetchAll: "Failed to fetch form fields",
	OpUpdate:   "Failed to update form field",
	OpDelete:   "Failed to delete form field",
	OpReorder:  "Failed to reorder form fields",
}

// State is a snapshot of the field slice.
type State struct {
	FormID      int64             `json:"formId"`
	Fields      []Field           `json:"fields"`
	Loading     bool              `json:"loading"`
	Pending     int               `json:"pending"`
	Error       string            `json:"error,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

// ListResult is the payload of a successful fetch: the form the fields
// belong to and the fields themselves.
type ListResult struct {
	FormID int64
	Fields []Field
}

// Slice owns the fields of the form currently being edited.
type Slice struct {
	mu          sync.RWMutex
	formID      int64
	fields      []Field
	err         string
	fieldErrors map[string]string
	tracker     dispatch.Tracker
}

// NewSlice creates an empty field slice.
func NewSlice() *Slice {
	return &Slice{fields: []Field{}}
}

// Snapshot returns a copy of the current state.
func (s *Slice) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := State{
		FormID:  s.formID,
		Fields:  make([]Field, len(s.fields)),
		Loading: s.tracker.Loading(),
		Pending: s.tracker.Pending(),
		Error:   s.err,
	}
	for i, f := range s.fields {
		out.Fields[i] = cloneField(f)
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
	case OpFetchAll, OpReorder:
		res, ok := ev.Payload.(ListResult)
		if !ok {
			return
		}
		fields := make([]Field, len(res.Fields))
		copy(fields, res.Fields)
		SortByOrder(fields)
		s.formID = res.FormID
		s.fields = fields
	case OpCreate:
		if f, ok := ev.Payload.(*Field); ok && f != nil {
			s.fields = append(s.fields, cloneField(*f))
		}
	case OpUpdate:
		f, ok := ev.Payload.(*Field)
		if !ok || f == nil {
			return
		}
		for i := range s.fields {
			if s.fields[i].ID == f.ID {
				s.fields[i] = cloneField(*f)
				return
			}
		}
	case OpDelete:
		id, ok := ev.Payload.(int64)
		if !ok {
			return
		}
		kept := s.fields[:0:0]
		for _, f := range s.fields {
			if f.ID != id {
				kept = append(kept, f)
			}
		}
		s.fields = kept
	case OpClearError:
		s.err = ""
		s.fieldErrors = nil
	}
}

func cloneField(f Field) Field {
	if f.Options != nil {
		f.Options = append([]string(nil), f.Options...)
	}
	return f
}
