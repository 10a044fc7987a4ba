package form

import (
	"time"

	"github.com/alecgard/formdesk/internal/field"
)

// Form is a form definition owned by a user.
type Form struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	IsPublished bool          `json:"isPublished"`
	ExpiresAt   *time.Time    `json:"expiresAt,omitempty"`
	CreatedBy   int64         `json:"createdBy"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	Fields      []field.Field `json:"fields,omitempty"`
}

// CreateInput holds the fields required to create a form.
type CreateInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	IsPublished *bool      `json:"isPublished,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// UpdateInput holds the fields that can be updated on a form.
// All fields are optional; only non-nil fields are sent.
type UpdateInput struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	IsPublished *bool      `json:"isPublished,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// ListParams controls pagination of the form listing.
type ListParams struct {
	Page  int
	Limit int
}
