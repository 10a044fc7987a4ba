package submission

import (
	"sync"

	"github.com/alecgard/formdesk/internal/client"
	"github.com/alecgard/formdesk/internal/dispatch"
)

// Operation names owned by the submission slice.
const (
	OpSubmit       = "formSubmissions/submit"
	OpFetchAll     = "formSubmissions/fetchAll"
	OpFetchByID    = "formSubmissions/fetchById"
	OpDelete       = "formSubmissions/delete"
	OpFetchStats   = "formSubmissions/fetchStats"
	OpExport       = "formSubmissions/export"
	OpClearCurrent = "formSubmissions/clearCurrent"
	OpClearError   = "formSubmissions/clearError"
)

var failureMessages = map[string]string{
	OpSubmit:     "Failed to submit form",
	OpFetchAll:   "Failed to fetch submissions",
	OpFetchByID:  "Failed to fetch submission",
	OpDelete:     "Failed to delete submission",
	OpFetchStats: "Failed to fetch submission stats",
	OpExport:     "Failed to export submissions",
}

// State is a snapshot of the submission slice.
type State struct {
	Submissions      []Submission      `json:"submissions"`
	Current          *Submission       `json:"currentSubmission"`
	Stats            *Stats            `json:"stats"`
	LastExport       *ExportResult     `json:"lastExport,omitempty"`
	LastSubmissionID int64             `json:"lastSubmissionId,omitempty"`
	Loading          bool              `json:"loading"`
	Pending          int               `json:"pending"`
	Error            string            `json:"error,omitempty"`
	FieldErrors      map[string]string `json:"fieldErrors,omitempty"`
	Pagination       client.Pagination `json:"pagination"`
}

// Slice mirrors one page of a form's submissions plus its stats.
type Slice struct {
	mu          sync.RWMutex
	submissions []Submission
	current     *Submission
	stats       *Stats
	lastExport  *ExportResult
	lastSubmit  int64
	err         string
	fieldErrors map[string]string
	pagination  client.Pagination
	tracker     dispatch.Tracker
}

// NewSlice creates an empty submission slice.
func NewSlice() *Slice {
	return &Slice{submissions: []Submission{}, pagination: client.DefaultPagination()}
}

// Snapshot returns a copy of the current state.
func (s *Slice) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := State{
		Submissions:      make([]Submission, len(s.submissions)),
		LastSubmissionID: s.lastSubmit,
		Loading:          s.tracker.Loading(),
		Pending:          s.tracker.Pending(),
		Error:            s.err,
		Pagination:       s.pagination,
	}
	for i, sub := range s.submissions {
		out.Submissions[i] = cloneSubmission(sub)
	}
	if s.current != nil {
		c := cloneSubmission(*s.current)
		out.Current = &c
	}
	if s.stats != nil {
		st := *s.stats
		out.Stats = &st
	}
	if s.lastExport != nil {
		e := *s.lastExport
		out.LastExport = &e
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
	case OpSubmit:
		if res, ok := ev.Payload.(*SubmitResult); ok && res != nil {
			s.lastSubmit = res.SubmissionID
		}
	case OpFetchAll:
		page, ok := ev.Payload.(*client.Page[Submission])
		if !ok || page == nil {
			return
		}
		subs := make([]Submission, len(page.Data))
		for i, sub := range page.Data {
			subs[i] = cloneSubmission(sub)
		}
		s.submissions = subs
		s.pagination = page.Pagination()
	case OpFetchByID:
		sub, ok := ev.Payload.(*Submission)
		if !ok || sub == nil {
			return
		}
		c := cloneSubmission(*sub)
		s.current = &c
	case OpDelete:
		id, ok := ev.Payload.(int64)
		if !ok {
			return
		}
		kept := s.submissions[:0:0]
		for _, sub := range s.submissions {
			if sub.ID != id {
				kept = append(kept, sub)
			}
		}
		s.submissions = kept
		if s.current != nil && s.current.ID == id {
			s.current = nil
		}
	case OpFetchStats:
		if st, ok := ev.Payload.(*Stats); ok && st != nil {
			c := *st
			s.stats = &c
		}
	case OpExport:
		if res, ok := ev.Payload.(*ExportResult); ok && res != nil {
			c := *res
			s.lastExport = &c
		}
	case OpClearCurrent:
		s.current = nil
	case OpClearError:
		s.err = ""
		s.fieldErrors = nil
	}
}

func cloneSubmission(sub Submission) Submission {
	if sub.Data != nil {
		sub.Data = append([]Answer(nil), sub.Data...)
	}
	if sub.Files != nil {
		sub.Files = append([]string(nil), sub.Files...)
	}
	return sub
}
