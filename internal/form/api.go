package form

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alecgard/formdesk/internal/client"
)

// API maps the form endpoints onto typed calls.
type API struct {
	c client.Doer
}

// NewAPI creates a form API backed by c.
func NewAPI(c client.Doer) *API {
	return &API{c: c}
}

// Create creates a form; the server assigns its id.
func (a *API) Create(ctx context.Context, in CreateInput) (*Form, error) {
	var out client.Envelope[*Form]
	err := client.DoJSON(ctx, a.c, client.Request{
		Method: http.MethodPost,
		Path:   "/api/form",
		Body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// List returns one page of the caller's forms.
func (a *API) List(ctx context.Context, params ListParams) (*client.Page[Form], error) {
	var out client.Envelope[client.Page[Form]]
	err := client.DoJSON(ctx, a.c, client.Request{
		Method: http.MethodGet,
		Path:   "/api/form",
		Query:  pageQuery(params.Page, params.Limit),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Get returns a form by id, including its fields when the server embeds them.
func (a *API) Get(ctx context.Context, id int64) (*Form, error) {
	var out client.Envelope[*Form]
	err := client.DoJSON(ctx, a.c, client.Request{
		Method:  http.MethodGet,
		Path:    "/api/form/" + strconv.FormatInt(id, 10),
		Pattern: "/api/form/{id}",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Update applies a partial update to a form.
func (a *API) Update(ctx context.Context, id int64, in UpdateInput) (*Form, error) {
	var out client.Envelope[*Form]
	err := client.DoJSON(ctx, a.c, client.Request{
		Method:  http.MethodPut,
		Path:    "/api/form/" + strconv.FormatInt(id, 10),
		Pattern: "/api/form/{id}",
		Body:    in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Delete removes a form.
func (a *API) Delete(ctx context.Context, id int64) error {
	_, err := a.c.Do(ctx, client.Request{
		Method:  http.MethodDelete,
		Path:    "/api/form/" + strconv.FormatInt(id, 10),
		Pattern: "/api/form/{id}",
	})
	return err
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}
