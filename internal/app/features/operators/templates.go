// internal/app/features/operators/templates.go
package operators

import (
	"embed"

	"github.com/dalemusser/waffle/pantry/templates"
)

// FS holds the operator list and account forms.
//
//go:embed templates/*.gohtml
var FS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     "operators",
		FS:       FS,
		Patterns: []string{"templates/*.gohtml"},
	})
}
