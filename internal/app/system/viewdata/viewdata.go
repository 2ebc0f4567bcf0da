// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"html/template"
	"net/http"
	"sync"

	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/authz"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
)

// BaseVM contains common fields for all view models.
// Embed this struct in your feature-specific view models.
//
//	type listData struct {
//	    viewdata.BaseVM
//	    Members []memberRow
//	}
type BaseVM struct {
	SiteName   string
	FooterHTML template.HTML

	// Operator context (from auth middleware)
	IsLoggedIn bool
	UserID     string
	LoginID    string
	Role       string
	UserName   string
	IsAdmin    bool
	CanEdit    bool // may create, update and delete members

	// Page context
	Title       string
	BackURL     string
	CurrentPath string

	CSRFToken string
}

var (
	mu       sync.RWMutex
	siteName = models.DefaultSiteName
	footer   = template.HTML(models.DefaultFooterHTML)
)

// Init sets the site name shown in page headers. Call once from bootstrap.
func Init(name string) {
	mu.Lock()
	defer mu.Unlock()
	if name != "" {
		siteName = name
	}
}

// SiteName returns the configured site name.
func SiteName() string {
	mu.RLock()
	defer mu.RUnlock()
	return siteName
}

// NewBaseVM creates a fully populated BaseVM for a page.
// backDefault is used for the back button when the request carries no
// safe return URL.
func NewBaseVM(r *http.Request, title, backDefault string) BaseVM {
	vm := New(r)
	vm.Title = title
	vm.BackURL = httpnav.ResolveBackURL(r, backDefault)
	return vm
}

// New creates a BaseVM without page title or back link.
func New(r *http.Request) BaseVM {
	role, name, userID, signedIn := authz.UserCtx(r)

	mu.RLock()
	vm := BaseVM{
		SiteName:    siteName,
		FooterHTML:  footer,
		IsLoggedIn:  signedIn,
		Role:        role,
		UserName:    name,
		IsAdmin:     signedIn && role == models.RoleAdmin,
		CanEdit:     signedIn && authz.CanEditMembers(r),
		CurrentPath: httpnav.CurrentPath(r),
		CSRFToken:   csrf.Token(r),
	}
	mu.RUnlock()

	if signedIn {
		vm.UserID = userID.Hex()
		if user, ok := auth.CurrentUser(r); ok {
			vm.LoginID = user.LoginID
		}
	}
	return vm
}
