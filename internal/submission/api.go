package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alecgard/formdesk/internal/client"
)

// API maps the submission endpoints onto typed calls.
type API struct {
	c client.Doer
}

// NewAPI creates a submission API backed by c.
func NewAPI(c client.Doer) *API {
	return &API{c: c}
}

// Submit posts answers and optional attachments as multipart form data. The
// endpoint is public.
func (a *API) Submit(ctx context.Context, formID int64, data []Answer, files []client.File) (*SubmitResult, error) {
	if data == nil {
		data = []Answer{}
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding submission data: %w", err)
	}
	var out client.Envelope[*SubmitResult]
	err = client.DoJSON(ctx, a.c, client.Request{
		Method:  http.MethodPost,
		Path:    "/api/form/" + strconv.FormatInt(formID, 10) + "/submit",
		Pattern: "/api/form/{formId}/submit",
		Multipart: &client.Multipart{
			Fields:    map[string]string{"submissionData": string(encoded)},
			FileField: "files",
			Files:     files,
		},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Data == nil {
		return &SubmitResult{}, nil
	}
	return out.Data, nil
}

// List returns one page of a form's submissions.
func (a *API) List(ctx context.Context, params ListParams) (*client.Page[Submission], error) {
	q := url.Values{}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	var out client.Envelope[client.Page[Submission]]
	err := client.DoJSON(ctx, a.c, client.Request{
		Method:  http.MethodGet,
		Path:    "/api/form/" + strconv.FormatInt(params.FormID, 10) + "/submissions",
		Pattern: "/api/form/{formId}/submissions",
		Query:   q,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Get returns a submission by id.
func (a *API) Get(ctx context.Context, id int64) (*Submission, error) {
	var out client.Envelope[*Submission]
	err := client.DoJSON(ctx, a.c, client.Request{
		Method:  http.MethodGet,
		Path:    "/api/form/submissions/" + strconv.FormatInt(id, 10),
		Pattern: "/api/form/submissions/{id}",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Delete removes a submission.
func (a *API) Delete(ctx context.Context, id int64) error {
	_, err := a.c.Do(ctx, client.Request{
		Method:  http.MethodDelete,
		Path:    "/api/form/submissions/" + strconv.FormatInt(id, 10),
		Pattern: "/api/form/submissions/{id}",
	})
	return err
}

// Stats returns the submission counts of a form.
func (a *API) Stats(ctx context.Context, formID int64) (*Stats, error) {
	var out client.Envelope[*Stats]
	err := client.DoJSON(ctx, a.c, client.Request{
		Method:  http.MethodGet,
		Path:    "/api/form/" + strconv.FormatInt(formID, 10) + "/submissions/stats",
		Pattern: "/api/form/{formId}/submissions/stats",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Export downloads every submission of a form in the given format.
func (a *API) Export(ctx context.Context, formID int64, format string) (*Export, error) {
	resp, err := a.c.Do(ctx, client.Request{
		Method:  http.MethodGet,
		Path:    "/api/form/" + strconv.FormatInt(formID, 10) + "/submissions/export",
		Pattern: "/api/form/{formId}/submissions/export",
		Query:   url.Values{"format": {format}},
		Raw:     true,
	})
	if err != nil {
		return nil, err
	}
	return &Export{
		FormID:      formID,
		Format:      format,
		Filename:    resp.Filename,
		ContentType: resp.ContentType,
		Data:        resp.Body,
	}, nil
}
