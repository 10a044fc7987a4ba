package submission

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/alecgard/formdesk/internal/client"
	"github.com/alecgard/formdesk/internal/dispatch"
)

// Validation errors returned by the Service layer.
var (
	ErrLimitInvalid  = errors.New("limit must be between 1 and 100")
	ErrFormatInvalid = errors.New("format must be a short lowercase name such as csv")
)

// DefaultFormat is the export format used when none is given.
const DefaultFormat = "csv"

// MaxPageLimit is the largest page size the client asks for.
const MaxPageLimit = 100

var formatRe = regexp.MustCompile(`^[a-z0-9]{1,10}$`)

// ExportFilename is the name an export of formID in format is saved under.
func ExportFilename(formID int64, format string) string {
	return fmt.Sprintf("form_%d_submissions.%s", formID, format)
}

// Service issues the submission operations.
type Service struct {
	api          *API
	slice        *Slice
	d            *dispatch.Dispatcher
	defaultLimit int
	exportDir    string
}

// NewService creates a Service. Exports are written to exportDir.
func NewService(api *API, slice *Slice, d *dispatch.Dispatcher, defaultLimit int, exportDir string) *Service {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	if exportDir == "" {
		exportDir = "."
	}
	return &Service{api: api, slice: slice, d: d, defaultLimit: defaultLimit, exportDir: exportDir}
}

// Slice returns the submission slice.
func (s *Service) Slice() *Slice {
	return s.slice
}

// Submit posts answers and attachments to a form.
func (s *Service) Submit(ctx context.Context, formID int64, data []Answer, files []client.File) (*SubmitResult, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpSubmit, func(ctx context.Context) (*SubmitResult, error) {
		return s.api.Submit(ctx, formID, data, files)
	})
}

// List fetches one page of a form's submissions.
func (s *Service) List(ctx context.Context, params ListParams) (*client.Page[Submission], error) {
	return dispatch.Run(ctx, s.d, s.slice, OpFetchAll, func(ctx context.Context) (*client.Page[Submission], error) {
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

// Get fetches a submission into the current slot.
func (s *Service) Get(ctx context.Context, id int64) (*Submission, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpFetchByID, func(ctx context.Context) (*Submission, error) {
		return s.api.Get(ctx, id)
	})
}

// Delete removes a submission.
func (s *Service) Delete(ctx context.Context, id int64) error {
	_, err := dispatch.Run(ctx, s.d, s.slice, OpDelete, func(ctx context.Context) (int64, error) {
		if err := s.api.Delete(ctx, id); err != nil {
			return 0, err
		}
		return id, nil
	})
	return err
}

// Stats fetches the submission counts of a form.
func (s *Service) Stats(ctx context.Context, formID int64) (*Stats, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpFetchStats, func(ctx context.Context) (*Stats, error) {
		return s.api.Stats(ctx, formID)
	})
}

// Export downloads the submissions of a form and saves them as
// form_<id>_submissions.<format> in the export directory.
func (s *Service) Export(ctx context.Context, formID int64, format string) (*ExportResult, error) {
	return dispatch.Run(ctx, s.d, s.slice, OpExport, func(ctx context.Context) (*ExportResult, error) {
		if format == "" {
			format = DefaultFormat
		}
		if !formatRe.MatchString(format) {
			return nil, ErrFormatInvalid
		}
		exp, err := s.api.Export(ctx, formID, format)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating export dir: %w", err)
		}
		path := filepath.Join(s.exportDir, ExportFilename(formID, format))
		if err := os.WriteFile(path, exp.Data, 0o644); err != nil {
			return nil, fmt.Errorf("writing export: %w", err)
		}
		return &ExportResult{
			FormID: formID,
			Format: format,
			Path:   path,
			Size:   int64(len(exp.Data)),
		}, nil
	})
}

// ClearCurrent empties the current submission slot.
func (s *Service) ClearCurrent() {
	s.d.Emit(s.slice, dispatch.Event{Op: OpClearCurrent, Phase: dispatch.Succeeded})
}

// ClearError drops the stored error.
func (s *Service) ClearError() {
	s.d.Emit(s.slice, dispatch.Event{Op: OpClearError, Phase: dispatch.Succeeded})
}
