// Package formutil provides helpers for form re-rendering with validation errors.
//
// A failed submission re-renders the form with the operator's values echoed
// back and an error message above the fields:
//
//	type memberFormData struct {
//		formutil.Base
//		Name string
//	}
//
//	data := memberFormData{Base: formutil.NewBase(r, "会員登録", "/members"), Name: name}
//	data.SetFieldError("name", "氏名を入力してください。")
//	templates.Render(w, r, "member_new", data)
package formutil

import (
	"html/template"
	"net/http"
	"sort"

	"github.com/dalemusser/stratamembers/internal/app/system/viewdata"
)

// Base contains common fields for form pages that can be embedded in form data structs.
type Base struct {
	viewdata.BaseVM
	Error       template.HTML
	FieldErrors map[string]string
}

// NewBase creates a fully populated Base for a form page.
func NewBase(r *http.Request, title, backDefault string) Base {
	return Base{
		BaseVM: viewdata.NewBaseVM(r, title, backDefault),
	}
}

// SetError sets the form-level error message. msg is escaped.
func (b *Base) SetError(msg string) {
	b.Error = template.HTML(template.HTMLEscapeString(msg))
}

// SetFieldError records an error for one field and sets the form-level
// message to the first field error in field order.
func (b *Base) SetFieldError(field, msg string) {
	if b.FieldErrors == nil {
		b.FieldErrors = map[string]string{}
	}
	b.FieldErrors[field] = msg
	if b.Error == "" {
		b.SetError(msg)
	}
}

// SetFieldErrors records every entry of errs. The form-level message is the
// error of the alphabetically first field so re-renders are stable.
func (b *Base) SetFieldErrors(errs map[string]string) {
	if len(errs) == 0 {
		return
	}
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		b.SetFieldError(f, errs[f])
	}
}

// FieldError returns the message for field, or "".
func (b Base) FieldError(field string) string {
	return b.FieldErrors[field]
}

// HasErrors reports whether any error was set.
func (b Base) HasErrors() bool {
	return b.Error != "" || len(b.FieldErrors) > 0
}
