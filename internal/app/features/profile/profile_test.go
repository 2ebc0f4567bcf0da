package profile

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/stratamembers/internal/app/features/errors"
	auditstore "github.com/dalemusser/stratamembers/internal/app/store/audit"
	userstore "github.com/dalemusser/stratamembers/internal/app/store/users"
	"github.com/dalemusser/stratamembers/internal/app/system/auditlog"
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/authutil"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"github.com/dalemusser/stratamembers/internal/testutil"
	"go.uber.org/zap"
)

const oldPassword = "correct-horse-battery"

type fixture struct {
	router http.Handler
	users  *userstore.Store
	audit  *auditstore.Store
	me     models.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	sm, err := auth.NewSessionManager("test-session-key-for-testing-1234567890", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}

	users := userstore.New(db)
	hash, err := authutil.HashPassword(oldPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	ctx, cancel := testutil.TestContext()
	defer cancel()
	me, err := users.Create(ctx, userstore.CreateInput{FullName: "受付 太郎", LoginID: "uketsuke", Role: models.RoleStaff, PasswordHash: hash})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	audit := auditstore.New(db)
	h := NewHandler(db, errorsfeature.NewErrorLogger(logger), auditlog.New(audit, logger, auditlog.Config{}), logger)
	return fixture{router: Routes(h, sm), users: users, audit: audit, me: me}
}

func (f fixture) user() testutil.TestUser {
	return testutil.TestUser{ID: f.me.ID.Hex(), Name: f.me.FullName, LoginID: f.me.LoginID, Role: f.me.Role}
}

func (f fixture) serve(req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestShowProfile(t *testing.T) {
	f := newFixture(t)

	rec := f.serve(testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, "/", f.user()))

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "受付 太郎")
	rec.AssertContains(t, "uketsuke")
	rec.AssertContains(t, "事務局")
}

func TestShowProfile_Anonymous(t *testing.T) {
	f := newFixture(t)
	rec := f.serve(testutil.NewRequest(http.MethodGet, "/"))
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	form := url.Values{
		"current_password": {oldPassword},
		"new_password":     {"a-brand-new-secret"},
		"confirm_password": {"a-brand-new-secret"},
	}

	rec := f.serve(testutil.NewFormRequest("/password", form, f.user()))

	rec.AssertRedirect(t, "/profile?success=password")
	ctx, cancel := testutil.TestContext()
	defer cancel()
	got, err := f.users.GetByID(ctx, f.me.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !authutil.CheckPassword("a-brand-new-secret", got.PasswordHash) {
		t.Error("new password was not stored")
	}
	n, err := f.audit.Count(ctx, auditstore.QueryFilter{EventType: auditstore.EventPasswordChanged})
	if err != nil || n != 1 {
		t.Errorf("password_changed events = %d (err %v), want 1", n, err)
	}
}

func TestChangePassword_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		current string
		next    string
		confirm string
		want    string
	}{
		{"wrong current", "nope-nope-nope", "a-brand-new-secret", "a-brand-new-secret", "現在のパスワードが正しくありません。"},
		{"too short", oldPassword, "short", "short", authutil.ErrPasswordTooShort.Error()},
		{"mismatch", oldPassword, "a-brand-new-secret", "a-different-secret", "確認用のパスワードが一致しません。"},
		{"unchanged", oldPassword, oldPassword, oldPassword, "現在と同じパスワードは使えません。"},
	}

	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{
				"current_password": {tt.current},
				"new_password":     {tt.next},
				"confirm_password": {tt.confirm},
			}
			rec := f.serve(testutil.NewFormRequest("/password", form, f.user()))
			rec.AssertStatus(t, http.StatusBadRequest)
			rec.AssertContains(t, tt.want)
		})
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	got, err := f.users.GetByID(ctx, f.me.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !authutil.CheckPassword(oldPassword, got.PasswordHash) {
		t.Error("password changed despite rejected forms")
	}
}
