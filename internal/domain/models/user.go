// internal/domain/models/user.go
package models

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies an operator record
//   - LoginID / loginID / login_id: The human-readable string operators type to log in

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an operator account: someone who signs in to manage members.
// Members themselves never sign in.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"full_name_ci"` // lowercase, diacritics-stripped

	LoginID   string `bson:"login_id" json:"login_id"`       // lowercase
	LoginIDCI string `bson:"login_id_ci" json:"login_id_ci"` // folded

	PasswordHash string `bson:"password_hash" json:"-"` // bcrypt

	Role   string `bson:"role" json:"role"`
	Status string `bson:"status,omitempty" json:"status,omitempty"` // active, disabled

	LastLoginAt *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

// Operator roles. Admins can run maintenance batches; staff maintain members.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// AllRoles returns all valid operator roles.
func AllRoles() []string {
	return []string{
		RoleAdmin,
		RoleStaff,
	}
}

// IsValidRole checks if a role is valid.
func IsValidRole(role string) bool {
	for _, r := range AllRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// RoleLabel returns the display name for role.
func RoleLabel(role string) string {
	switch role {
	case RoleAdmin:
		return "管理者"
	case RoleStaff:
		return "事務局"
	}
	return role
}
