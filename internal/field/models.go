package field

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Type is the input kind of a field.
type Type string

const (
	TypeText     Type = "text"
	TypeEmail    Type = "email"
	TypeNumber   Type = "number"
	TypeTel      Type = "tel"
	TypeURL      Type = "url"
	TypePassword Type = "password"
	TypeTextarea Type = "textarea"
	TypeSelect   Type = "select"
	TypeRadio    Type = "radio"
	TypeCheckbox Type = "checkbox"
	TypeFile     Type = "file"
)

// Types lists every supported field type in display order.
var Types = []Type{
	TypeText, TypeEmail, TypeNumber, TypeTel, TypeURL, TypePassword,
	TypeTextarea, TypeSelect, TypeRadio, TypeCheckbox, TypeFile,
}

// ParseType validates s as a field type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrTypeInvalid, s)
	}
	return t, nil
}

// Valid reports whether t is a known field type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// NeedsOptions reports whether fields of this type take a list of choices.
func (t Type) NeedsOptions() bool {
	return t == TypeSelect || t == TypeRadio || t == TypeCheckbox
}

// Field is one input of a form.
type Field struct {
	ID          int64     `json:"id"`
	FormID      int64     `json:"formId"`
	FieldType   Type      `json:"fieldType"`
	Label       string    `json:"label"`
	Placeholder string    `json:"placeholder,omitempty"`
	Required    bool      `json:"required"`
	Options     []string  `json:"options,omitempty"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateInput is the body of POST /api/form/{formId}/fields.
type CreateInput struct {
	FieldName   string   `json:"fieldName"`
	FieldType   Type     `json:"fieldType"`
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder,omitempty"`
	IsRequired  bool     `json:"isRequired"`
	OrderNumber int      `json:"orderNumber"`
	Options     []string `json:"options,omitempty"`
}

// UpdateInput holds the fields that can be updated on a field.
// All fields are optional; only non-nil fields are sent.
type UpdateInput struct {
	FieldName   *string   `json:"fieldName,omitempty"`
	FieldType   *Type     `json:"fieldType,omitempty"`
	Label       *string   `json:"label,omitempty"`
	Placeholder *string   `json:"placeholder,omitempty"`
	IsRequired  *bool     `json:"isRequired,omitempty"`
	OrderNumber *int      `json:"orderNumber,omitempty"`
	Options     *[]string `json:"options,omitempty"`
}

// Order assigns a display position to one field in a reorder request.
type Order struct {
	FieldID int64 `json:"fieldId"`
	Order   int   `json:"order"`
}

// ParseOptions splits a comma separated option list, trimming whitespace and
// dropping empty entries. Empty input yields nil.
func ParseOptions(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, opt := range strings.Split(s, ",") {
		opt = strings.TrimSpace(opt)
		if opt != "" {
			out = append(out, opt)
		}
	}
	return out
}

// SortByOrder sorts fields by their order key. Ties keep their relative
// position.
func SortByOrder(fields []Field) {
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Order < fields[j].Order
	})
}
