package field

import (
	"context"
	"errors"
	"strings"

	"github.com/alecgard/formdesk/internal/dispatch"
)

// Validation errors returned by the Service layer.
var (
	ErrLabelRequired = errors.New("label is required")
	ErrTypeInvalid   = errors.New("fieldType must be one of: text, email, number, tel, url, password, textarea, select, radio, checkbox, file")
	ErrOrderInvalid  = errors.New("orderNumber must be at least 1")
	ErrNoOrders      = errors.New("at least one field order is required")
)

// Service issues the field operations.
type Service struct {
	api   *API
	slice *Slice
	d     *dispatch.Dispatcher
}

// NewService creates a Service.
func NewService(api *API, slice *Slice, d *dispatch.Dispatcher) *Service {
	return &Service{api: api, slice: slice, d: d}
}

// Slice returns the field slice.
func (s *Service) Slice() *Slice {
	return s.slice
}

// Create validates in and adds the field to the form.
func (s *Service) Create(ctx context.Context, formID int64, in CreateInput) (*Field, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpCreate, func(ctx context.Context) (*Field, error) {
		if in.OrderNumber == 0 {
			in.OrderNumber = 1
		}
		if in.FieldName == "" {
			in.FieldName = strings.TrimSpace(in.Label)
		}
		if err := validateCreate(in); err != nil {
			return nil, err
		}
		if !in.FieldType.NeedsOptions() {
			in.Options = nil
		}
		return s.api.Create(ctx, formID, in)
	})
}

// List fetches every field of the form, replacing the slice contents.
func (s *Service) List(ctx context.Context, formID int64) (ListResult, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpFetchAll, func(ctx context.Context) (ListResult, error) {
		fields, err := s.api.List(ctx, formID)
		if err != nil {
			return ListResult{}, err
		}
		return ListResult{FormID: formID, Fields: fields}, nil
	})
}

// Update validates in and applies it to the field.
func (s *Service) Update(ctx context.Context, fieldID int64, in UpdateInput) (*Field, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpUpdate, func(ctx context.Context) (*Field, error) {
		if err := validateUpdate(in); err != nil {
			return nil, err
		}
		return s.api.Update(ctx, fieldID, in)
	})
}

// Delete removes the field.
func (s *Service) Delete(ctx context.Context, fieldID int64) error {
	_, err := dispatch.Run(ctx, s.d, s.slice, OpDelete, func(ctx context.Context) (int64, error) {
		if err := s.api.Delete(ctx, fieldID); err != nil {
			return 0, err
		}
		return fieldID, nil
	})
	return err
}

// Reorder sends new order keys; the slice takes the server's list as-is.
func (s *Service) Reorder(ctx context.Context, formID int64, orders []Order) (ListResult, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpReorder, func(ctx context.Context) (ListResult, error) {
		if len(orders) == 0 {
			return ListResult{}, ErrNoOrders
		}
		fields, err := s.api.Reorder(ctx, formID, orders)
		if err != nil {
			return ListResult{}, err
		}
		return ListResult{FormID: formID, Fields: fields}, nil
	})
}

// ClearError drops the stored error.
func (s *Service) ClearError() {
	s.d.Emit(s.slice, dispatch.Event{Op: OpClearError, Phase: dispatch.Succeeded})
}

func validateCreate(in CreateInput) error {
	if strings.TrimSpace(in.Label) == "" {
		return ErrLabelRequired
	}
	if !in.FieldType.Valid() {
		return ErrTypeInvalid
	}
	if in.OrderNumber < 1 {
		return ErrOrderInvalid
	}
	return nil
}

func validateUpdate(in UpdateInput) error {
	if in.Label != nil && strings.TrimSpace(*in.Label) == "" {
		return ErrLabelRequired
	}
	if in.FieldType != nil && !in.FieldType.Valid() {
		return ErrTypeInvalid
	}
	if in.OrderNumber != nil && *in.OrderNumber < 1 {
		return ErrOrderInvalid
	}
	return nil
}
