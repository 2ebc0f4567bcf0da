package testutil

import (
	"sync"

	"github.com/dalemusser/stratamembers/internal/app/resources"
	"github.com/dalemusser/stratamembers/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

var (
	bootOnce sync.Once
	bootErr  error
)

// BootTemplatesOnce registers the shared layout and boots the template
// engine the way BuildHandler does. Feature templates register themselves
// in init, so every feature imported by the test binary is available.
func BootTemplatesOnce() error {
	bootOnce.Do(func() {
		resources.LoadSharedTemplates()
		viewdata.Init("")

		eng := templates.New(false)
		logger := zap.NewNop()
		if bootErr = eng.Boot(logger); bootErr != nil {
			return
		}
		templates.UseEngine(eng, logger)
	})
	return bootErr
}

// MustBootTemplates boots templates and fails the test on error.
func MustBootTemplates(t interface{ Fatalf(string, ...any) }) {
	if err := BootTemplatesOnce(); err != nil {
		t.Fatalf("failed to boot templates: %v", err)
	}
}
