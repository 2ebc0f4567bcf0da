// internal/app/features/maintenance/templates.go
package maintenance

import (
	"embed"

	"github.com/dalemusser/waffle/pantry/templates"
)

// FS holds the maintenance preview and job history pages.
//
//go:embed templates/*.gohtml
var FS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     "maintenance",
		FS:       FS,
		Patterns: []string{"templates/*.gohtml"},
	})
}
