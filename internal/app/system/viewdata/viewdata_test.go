package viewdata

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNew_Visitor(t *testing.T) {
	req := httptest.NewRequest("GET", "/members", nil)
	vm := New(req)

	if vm.IsLoggedIn {
		t.Error("IsLoggedIn = true, want false")
	}
	if vm.UserID != "" {
		t.Errorf("UserID = %q, want empty", vm.UserID)
	}
	if vm.CanEdit || vm.IsAdmin {
		t.Error("visitor should not have edit or admin rights")
	}
	if vm.SiteName == "" {
		t.Error("SiteName should default to a non-empty value")
	}
	if vm.CurrentPath != "/members" {
		t.Errorf("CurrentPath = %q, want /members", vm.CurrentPath)
	}
}

func TestNewBaseVM_Operator(t *testing.T) {
	id := primitive.NewObjectID()
	tests := []struct {
		role        string
		wantAdmin   bool
		wantCanEdit bool
	}{
		{models.RoleAdmin, true, true},
		{models.RoleStaff, false, true},
		{"viewer", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/members/new", nil)
			req = auth.WithTestUser(req, &auth.SessionUser{
				ID:      id.Hex(),
				Name:    "山田 花子",
				LoginID: "hanako",
				Role:    tt.role,
			})

			vm := NewBaseVM(req, "会員登録", "/members")
			if !vm.IsLoggedIn {
				t.Fatal("IsLoggedIn = false, want true")
			}
			if vm.UserID != id.Hex() || vm.LoginID != "hanako" || vm.UserName != "山田 花子" {
				t.Errorf("operator fields = %q/%q/%q", vm.UserID, vm.LoginID, vm.UserName)
			}
			if vm.IsAdmin != tt.wantAdmin {
				t.Errorf("IsAdmin = %v, want %v", vm.IsAdmin, tt.wantAdmin)
			}
			if vm.CanEdit != tt.wantCanEdit {
				t.Errorf("CanEdit = %v, want %v", vm.CanEdit, tt.wantCanEdit)
			}
			if vm.Title != "会員登録" {
				t.Errorf("Title = %q", vm.Title)
			}
			if vm.BackURL != "/members" {
				t.Errorf("BackURL = %q, want /members", vm.BackURL)
			}
		})
	}
}
