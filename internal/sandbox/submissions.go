package sandbox

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/formdesk/internal/field"
	"github.com/alecgard/formdesk/internal/submission"
)

func emptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	}
	return false
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, p := range t {
			parts[i] = formatValue(p)
		}
		return strings.Join(parts, "; ")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// checkAnswers validates answers against the form's fields, keyed by field id.
func checkAnswers(fields []field.Field, answers []submission.Answer) map[string]string {
	errs := map[string]string{}
	byID := make(map[int64]any, len(answers))
	known := make(map[int64]bool, len(fields))
	for _, f := range fields {
		known[f.ID] = true
	}
	for _, a := range answers {
		if !known[a.FieldID] {
			errs[strconv.FormatInt(a.FieldID, 10)] = "Unknown field"
			continue
		}
		byID[a.FieldID] = a.Value
	}
	for _, f := range fields {
		if f.Required && emptyValue(byID[f.ID]) {
			errs[strconv.FormatInt(f.ID, 10)] = f.Label + " is required"
		}
	}
	return errs
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Submission must be multipart form data")
		return
	}

	var answers []submission.Answer
	if raw := r.FormValue("submissionData"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &answers); err != nil {
			writeValidation(w, map[string]string{"submissionData": "Submission data must be a JSON array"})
			return
		}
	}

	f, err := s.store.publicForm(formID)
	if err != nil {
		s.writeStoreError(w, err, "Form")
		return
	}
	if !f.IsPublished {
		writeError(w, http.StatusBadRequest, "Form is not accepting submissions")
		return
	}
	if f.ExpiresAt != nil && s.now().After(*f.ExpiresAt) {
		writeError(w, http.StatusBadRequest, "Form has expired")
		return
	}
	if errs := checkAnswers(f.Fields, answers); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	var files []string
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["files"] {
			files = append(files, fh.Filename)
		}
	}

	sub := s.store.addSubmission(formID, answers, files)
	writeData(w, http.StatusCreated, "Form submitted successfully", submission.SubmitResult{SubmissionID: sub.ID})
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	subs, err := s.store.listSubmissions(userFromContext(r.Context()).ID, formID)
	if err != nil {
		s.writeStoreError(w, err, "Form")
		return
	}
	p, ok := paginate(w, r, subs)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, "", p)
}

func submissionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := idParam(chi.URLParam(r, "submissionID"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid submission id")
	}
	return id, ok
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := submissionID(w, r)
	if !ok {
		return
	}
	sub, err := s.store.getSubmission(userFromContext(r.Context()).ID, id)
	if err != nil {
		s.writeStoreError(w, err, "Submission")
		return
	}
	writeData(w, http.StatusOK, "", sub)
}

func (s *Server) handleDeleteSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := submissionID(w, r)
	if !ok {
		return
	}
	if err := s.store.deleteSubmission(userFromContext(r.Context()).ID, id); err != nil {
		s.writeStoreError(w, err, "Submission")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "Submission deleted"})
}

func (s *Server) handleSubmissionStats(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	st, err := s.store.stats(userFromContext(r.Context()).ID, formID)
	if err != nil {
		s.writeStoreError(w, err, "Form")
		return
	}
	writeData(w, http.StatusOK, "", st)
}

func (s *Server) handleExportSubmissions(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = submission.DefaultFormat
	}
	if format != "csv" && format != "json" {
		writeError(w, http.StatusBadRequest, "Unsupported export format")
		return
	}

	owner := userFromContext(r.Context()).ID
	f, err := s.store.ownedForm(owner, formID)
	if err != nil {
		s.writeStoreError(w, err, "Form")
		return
	}
	subs, err := s.store.listSubmissions(owner, formID)
	if err != nil {
		s.writeStoreError(w, err, "Form")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", submission.ExportFilename(formID, format)))
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(subs)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	cw := csv.NewWriter(w)
	header := []string{"Submission ID", "Submitted At"}
	for _, fl := range f.Fields {
		header = append(header, fl.Label)
	}
	header = append(header, "Files")
	_ = cw.Write(header)

	for _, sub := range subs {
		values := make(map[int64]any, len(sub.Data))
		for _, a := range sub.Data {
			values[a.FieldID] = a.Value
		}
		row := []string{strconv.FormatInt(sub.ID, 10), sub.SubmittedAt.UTC().Format(time.RFC3339)}
		for _, fl := range f.Fields {
			row = append(row, formatValue(values[fl.ID]))
		}
		row = append(row, strings.Join(sub.Files, "; "))
		_ = cw.Write(row)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.Error("writing csv export", "error", err)
	}
}
