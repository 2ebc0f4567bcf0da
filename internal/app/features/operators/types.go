// internal/app/features/operators/types.go
package operators

import (
	"github.com/dalemusser/stratamembers/internal/app/system/formutil"
	"github.com/dalemusser/stratamembers/internal/app/system/inputval"
	"github.com/dalemusser/stratamembers/internal/app/system/viewdata"
)

type operatorRow struct {
	ID          string
	FullName    string
	LoginID     string
	RoleLabel   string
	StatusLabel string
	Disabled    bool
	LastLogin   string
}

// ListVM is the operator list page.
type ListVM struct {
	viewdata.BaseVM
	Rows   []operatorRow
	Notice string
}

type roleOption struct {
	Value    string
	Label    string
	Selected bool
}

// NewVM is the new-operator form.
type NewVM struct {
	formutil.Base
	Input        inputval.OperatorInput
	Roles        []roleOption
	PasswordHint string
}

// ShowVM is one operator with the status and password forms.
type ShowVM struct {
	formutil.Base
	Operator     operatorRow
	IsSelf       bool
	Notice       string
	PasswordHint string
}
