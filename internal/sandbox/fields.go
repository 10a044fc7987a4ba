package sandbox

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/formdesk/internal/field"
)

func validateFieldInput(errs map[string]string, typ field.Type, label string, order int, options []string) {
	if strings.TrimSpace(label) == "" {
		errs["label"] = "Label is required"
	}
	if !typ.Valid() {
		errs["fieldType"] = "Field type is invalid"
	} else if typ.NeedsOptions() && len(options) == 0 {
		errs["options"] = "Options are required for " + string(typ) + " fields"
	}
	if order < 1 {
		errs["orderNumber"] = "Order must be at least 1"
	}
}

func (s *Server) handleCreateField(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	var in field.CreateInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	errs := map[string]string{}
	validateFieldInput(errs, in.FieldType, in.Label, in.OrderNumber, in.Options)
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	if !in.FieldType.NeedsOptions() {
		in.Options = nil
	}

	fl, err := s.store.createField(userFromContext(r.Context()).ID, formID, in)
	if err != nil {
		s.writeStoreError(w, err, "Form")
		return
	}
	writeData(w, http.StatusCreated, "Field created", fl)
}

func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	fields, err := s.store.listFields(userFromContext(r.Context()).ID, formID)
	if err != nil {
		s.writeStoreError(w, err, "Form")
		return
	}
	writeData(w, http.StatusOK, "", fields)
}

func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(chi.URLParam(r, "fieldID"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid field id")
		return
	}
	var in field.UpdateInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	errs := map[string]string{}
	if in.Label != nil && strings.TrimSpace(*in.Label) == "" {
		errs["label"] = "Label is required"
	}
	if in.FieldType != nil && !in.FieldType.Valid() {
		errs["fieldType"] = "Field type is invalid"
	}
	if in.OrderNumber != nil && *in.OrderNumber < 1 {
		errs["orderNumber"] = "Order must be at least 1"
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	fl, err := s.store.updateField(userFromContext(r.Context()).ID, id, in)
	if err != nil {
		s.writeStoreError(w, err, "Field")
		return
	}
	writeData(w, http.StatusOK, "Field updated", fl)
}

func (s *Server) handleDeleteField(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(chi.URLParam(r, "fieldID"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid field id")
		return
	}
	if err := s.store.deleteField(userFromContext(r.Context()).ID, id); err != nil {
		s.writeStoreError(w, err, "Field")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "Field deleted"})
}

func (s *Server) handleReorderFields(w http.ResponseWriter, r *http.Request) {
	formID, ok := s.formID(w, r)
	if !ok {
		return
	}
	var req struct {
		FieldOrders []field.Order `json:"fieldOrders"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.FieldOrders) == 0 {
		writeValidation(w, map[string]string{"fieldOrders": "At least one field order is required"})
		return
	}
	for _, o := range req.FieldOrders {
		if o.Order < 1 {
			writeValidation(w, map[string]string{"fieldOrders": "Order must be at least 1"})
			return
		}
	}

	fields, err := s.store.reorderFields(userFromContext(r.Context()).ID, formID, req.FieldOrders)
	if err != nil {
		s.writeStoreError(w, err, "Field")
		return
	}
	writeData(w, http.StatusOK, "Fields reordered", fields)
}
