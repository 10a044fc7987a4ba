package form

import (
	"context"
	"errors"
	"strings"

	"github.com/alecgard/formdesk/internal/client"
	"github.com/alecgard/formdesk/internal/dispatch"
)

// Validation errors returned by the Service layer.
var (
	ErrTitleRequired = errors.New("title is required")
	ErrLimitInvalid  = errors.New("limit must be between 1 and 100")
)

// MaxPageLimit is the largest page size the client asks for.
const MaxPageLimit = 100

// Service issues the form operations.
type Service struct {
	api          *API
	slice        *Slice
	d            *dispatch.Dispatcher
	defaultLimit int
}

// NewService creates a Service. defaultLimit is used when a listing does not
// specify one.
func NewService(api *API, slice *Slice, d *dispatch.Dispatcher, defaultLimit int) *Service {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &Service{api: api, slice: slice, d: d, defaultLimit: defaultLimit}
}

// Slice returns the form slice.
func (s *Service) Slice() *Slice {
	return s.slice
}

// Create validates in and creates the form.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Form, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpCreate, func(ctx context.Context) (*Form, error) {
		if strings.TrimSpace(in.Title) == "" {
			return nil, ErrTitleRequired
		}
		return s.api.Create(ctx, in)
	})
}

// List fetches one page of forms; the slice replaces its collection with it.
func (s *Service) List(ctx context.Context, params ListParams) (*client.Page[Form], error) {
	return dispatch.Run(ctx, s.d, s.slice, OpFetchAll, func(ctx context.Context) (*client.Page[Form], error) {
		if params.Page <= 0 {
			params.Page = 1
		}
		if params.Limit == 0 {
			params.Limit = s.defaultLimit
		}
		if params.Limit < 0 || params.Limit > MaxPageLimit {
			return nil, ErrLimitInvalid
		}
		return s.api.List(ctx, params)
	})
}

// Get fetches a form into the current slot.
func (s *Service) Get(ctx context.Context, id int64) (*Form, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpFetchByID, func(ctx context.Context) (*Form, error) {
		return s.api.Get(ctx, id)
	})
}

// Update validates in and applies it to the form.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Form, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpUpdate, func(ctx context.Context) (*Form, error) {
		if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
			return nil, ErrTitleRequired
		}
		return s.api.Update(ctx, id, in)
	})
}

// Delete removes the form.
func (s *Service) Delete(ctx context.Context, id int64) error {
	_, err := dispatch.Run(ctx, s.d, s.slice, OpDelete, func(ctx context.Context) (int64, error) {
		if err := s.api.Delete(ctx, id); err != nil {
			return 0, err
		}
		return id, nil
	})
	return err
}

// ClearCurrent empties the current form slot.
func (s *Service) ClearCurrent() {
	s.d.Emit(s.slice, dispatch.Event{Op: OpClearCurrent, Phase: dispatch.Succeeded})
}

// ClearError drops the stored error.
func (s *Service) ClearError() {
	s.d.Emit(s.slice, dispatch.Event{Op: OpClearError, Phase: dispatch.Succeeded})
}
