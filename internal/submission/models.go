package submission

import "time"

// Answer is the value given for one field.
type Answer struct {
	FieldID int64 `json:"fieldId"`
	Value   any   `json:"value"`
}

// Submission is one filled-in form. Submissions are never updated.
type Submission struct {
	ID          int64     `json:"id"`
	FormID      int64     `json:"formId"`
	Data        []Answer  `json:"submissionData"`
	Files       []string  `json:"files,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Stats is a read-only snapshot of submission counts for a form.
type Stats struct {
	TotalSubmissions int `json:"totalSubmissions"`
	TodaySubmissions int `json:"todaySubmissions"`
	WeekSubmissions  int `json:"weekSubmissions"`
	MonthSubmissions int `json:"monthSubmissions"`
}

// SubmitResult is the payload returned by the submit endpoint.
type SubmitResult struct {
	SubmissionID int64 `json:"submissionId"`
}

// ListParams controls pagination of a form's submissions.
type ListParams struct {
	FormID int64
	Page   int
	Limit  int
}

// Export is a downloaded submissions export.
type Export struct {
	FormID      int64
	Format      string
	Filename    string
	ContentType string
	Data        []byte
}

// ExportResult records where an export was written.
type ExportResult struct {
	FormID int64  `json:"formId"`
	Format string `json:"format"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
}
