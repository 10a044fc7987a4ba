package field

import (
	"context"
	"net/http"
	"strconv"

	"github.com/alecgard/formdesk/internal/client"
)

// API maps the field endpoints onto typed calls.
type API struct {
	c client.Doer
}

// NewAPI creates a field API backed by c.
func NewAPI(c client.Doer) *API {
	return &API{c: c}
}

// Create adds a field to a form.
func (a *API) Create(ctx context.Context, formID int64, in CreateInput) (*Field, error) {
	var out client.Envelope[*Field]
	err := client.DoJSON(ctx, a.c, client.Request{
		Method:  http.MethodPost,
		Path:    "/api/form/" + strconv.FormatInt(formID, 10) + "/fields",
		Pattern: "/api/form/{formId}/fields",
		Body:    in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// List returns every field of a form.
func (a *API) List(ctx context.Context, formID int64) ([]Field, error) {
	var out client.Envelope[[]Field]
	err := client.DoJSON(ctx, a.c, client.Request{
		Method:  http.MethodGet,
		Path:    "/api/form/" + strconv.FormatInt(formID, 10) + "/fields",
		Pattern: "/api/form/{formId}/fields",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Update applies a partial update to a field.
func (a *API) Update(ctx context.Context, fieldID int64, in UpdateInput) (*Field, error) {
	var out client.Envelope[*Field]
	err := client.DoJSON(ctx, a.c, client.Request{
		Method:  http.MethodPut,
		Path:    "/api/form/fields/" + strconv.FormatInt(fieldID, 10),
		Pattern: "/api/form/fields/{fieldId}",
		Body:    in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Delete removes a field.
func (a *API) Delete(ctx context.Context, fieldID int64) error {
	_, err := a.c.Do(ctx, client.Request{
		Method:  http.MethodDelete,
		Path:    "/api/form/fields/" + strconv.FormatInt(fieldID, 10),
		Pattern: "/api/form/fields/{fieldId}",
	})
	return err
}

// Reorder sets new order keys and returns the full, reordered field list.
func (a *API) Reorder(ctx context.Context, formID int64, orders []Order) ([]Field, error) {
	var out client.Envelope[[]Field]
	err := client.DoJSON(ctx, a.c, client.Request{
		Method:  http.MethodPatch,
		Path:    "/api/form/" + strconv.FormatInt(formID, 10) + "/fields/reorder",
		Pattern: "/api/form/{formId}/fields/reorder",
		Body:    map[string]any{"fieldOrders": orders},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}
