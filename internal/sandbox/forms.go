package sandbox

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/formdesk/internal/client"
	"github.com/alecgard/formdesk/internal/form"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// paginate parses page and limit and returns the requested window of items.
func paginate[T any](w http.ResponseWriter, r *http.Request, items []T) (page, bool) {
	q := r.URL.Query()
	pg, limit := 1, defaultPageLimit
	errs := map[string]string{}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errs["page"] = "Page must be a positive integer"
		} else {
			pg = n
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageLimit {
			errs["limit"] = "Limit must be between 1 and 100"
		} else {
			limit = n
		}
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return page{}, false
	}

	start := (pg - 1) * limit
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	window := make([]T, end-start)
	copy(window, items[start:end])

	return page{
		Data:       window,
		Total:      len(items),
		Page:       pg,
		Limit:      limit,
		TotalPages: client.TotalPages(len(items), limit),
	}, true
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	var in form.CreateInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		writeValidation(w, map[string]string{"title": "Title is required"})
		return
	}
	f := s.store.createForm(userFromContext(r.Context()).ID, in)
	writeData(w, http.StatusCreated, "Form created", f)
}

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	forms := s.store.listForms(userFromContext(r.Context()).ID)
	p, ok := paginate(w, r, forms)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, "", p)
}

func (s *Server) formID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := idParam(chi.URLParam(r, "formID"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid form id")
	}
	return id, ok
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	s.logger.Error("sandbox store", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	id, ok := s.formID(w, r)
	if !ok {
		return
	}
	f, err := s.store.ownedForm(userFromContext(r.Context()).ID, id)
	if err != nil {
		s.writeStoreError(w, err, "Form")
		return
	}
	writeData(w, http.StatusOK, "", f)
}

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	id, ok := s.formID(w, r)
	if !ok {
		return
	}
	var in form.UpdateInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		writeValidation(w, map[string]string{"title": "Title is required"})
		return
	}
	f, err := s.store.updateForm(userFromContext(r.Context()).ID, id, in)
	if err != nil {
		s.writeStoreError(w, err, "Form")
		return
	}
	writeData(w, http.StatusOK, "Form updated", f)
}

func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	id, ok := s.formID(w, r)
	if !ok {
		return
	}
	if err := s.store.deleteForm(userFromContext(r.Context()).ID, id); err != nil {
		s.writeStoreError(w, err, "Form")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "Form deleted"})
}
