// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/normalize"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the operator's normalized role, name, ObjectID and a found
// flag. A missing operator or a malformed ID yields "visitor" and ok=false.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return "visitor", "", primitive.NilObjectID, false
	}
	return normalize.Role(user.Role), user.Name, userID, true
}

// IsAdmin reports whether the current operator is an admin.
func IsAdmin(r *http.Request) bool {
	return HasRole(r, models.RoleAdmin)
}

// CanEditMembers reports whether the current operator may change member records.
func CanEditMembers(r *http.Request) bool {
	return HasRole(r, models.RoleAdmin, models.RoleStaff)
}

// IsLoggedIn reports whether there is an operator in the request context.
func IsLoggedIn(r *http.Request) bool {
	_, ok := auth.CurrentUser(r)
	return ok
}

// HasRole reports whether the current operator has one of roles.
func HasRole(r *http.Request, roles ...string) bool {
	role, _, _, ok := UserCtx(r)
	if !ok {
		return false
	}
	for _, allowed := range roles {
		if normalize.Role(allowed) == role {
			return true
		}
	}
	return false
}
