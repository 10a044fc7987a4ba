package client

// Envelope is the {status, message?, data} wrapper every JSON response uses.
type Envelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

// Page is the paginated payload carried in Envelope.Data by list endpoints.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// Pagination is the page block kept by list slices.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// DefaultPagination is the page block before the first list-fetch.
func DefaultPagination() Pagination {
	return Pagination{Page: 1, Limit: 10}
}

// Pagination returns the page block of p. TotalPages is derived from Total
// and Limit when the server omitted it.
func (p Page[T]) Pagination() Pagination {
	out := Pagination{Page: p.Page, Limit: p.Limit, Total: p.Total, TotalPages: p.TotalPages}
	if out.TotalPages == 0 && out.Total > 0 {
		out.TotalPages = TotalPages(out.Total, out.Limit)
	}
	return out
}

// TotalPages returns ceil(total / limit), or 0 when limit is not positive.
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
