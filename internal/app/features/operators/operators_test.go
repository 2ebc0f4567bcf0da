package operators

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
	"github.com/dalemusser/stratamembers/internal/app/system/status"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"github.com/dalemusser/stratamembers/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	router http.Handler
	users  *userstore.Store
	audit  *auditstore.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	sm, err := auth.NewSessionManager("test-session-key-for-testing-1234567890", "test-session", "", time.Hour, false, logger)
	require.NoError(t, err)

	audit := auditstore.New(db)
	h := NewHandler(db, errorsfeature.NewErrorLogger(logger), auditlog.New(audit, logger, auditlog.Config{}), logger)
	return fixture{router: Routes(h, sm), users: h.Users, audit: audit}
}

func (f fixture) serve(req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f fixture) seed(t *testing.T, loginID, role string) models.User {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	hash, err := authutil.HashPassword("correct-horse-battery")
	require.NoError(t, err)
	u, err := f.users.Create(ctx, userstore.CreateInput{FullName: loginID + " 担当", LoginID: loginID, Role: role, PasswordHash: hash})
	require.NoError(t, err)
	return u
}

func asUser(u models.User) testutil.TestUser {
	return testutil.TestUser{ID: u.ID.Hex(), Name: u.FullName, LoginID: u.LoginID, Role: u.Role}
}

func (f fixture) countEvents(t *testing.T, eventType string) int64 {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := f.audit.Count(ctx, auditstore.QueryFilter{EventType: eventType})
	require.NoError(t, err)
	return n
}

func TestList_ShowsOperators(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "uketsuke", models.RoleStaff)

	rec := f.serve(testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, "/", testutil.AdminUser()))

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "uketsuke 担当")
	rec.AssertContains(t, "事務局")
	rec.AssertContains(t, "有効")
}

func TestList_StaffForbidden(t *testing.T) {
	f := newFixture(t)
	rec := f.serve(testutil.NewAuthenticatedRequest(http.MethodGet, "/", testutil.StaffUser()))
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	form := url.Values{
		"full_name": {"受付　花子"},
		"login_id":  {"  Hanako "},
		"role":      {models.RoleStaff},
		"password":  {"correct-horse-battery"},
	}

	rec := f.serve(testutil.NewFormRequest("/new", form, testutil.AdminUser()))

	rec.AssertRedirect(t, "/operators?notice=created")
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u, err := f.users.GetByLoginID(ctx, "hanako")
	require.NoError(t, err)
	assert.Equal(t, "受付 花子", u.FullName)
	assert.Equal(t, models.RoleStaff, u.Role)
	assert.True(t, authutil.CheckPassword("correct-horse-battery", u.PasswordHash))
	assert.EqualValues(t, 1, f.countEvents(t, auditstore.EventOperatorCreated))
}

func TestCreate_ValidationErrors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"weak password", url.Values{"full_name": {"a"}, "login_id": {"a"}, "role": {"staff"}, "password": {"password"}}, authutil.ErrPasswordCommon.Error()},
		{"short password", url.Values{"full_name": {"a"}, "login_id": {"a"}, "role": {"staff"}, "password": {"abc"}}, authutil.ErrPasswordTooShort.Error()},
		{"bad role", url.Values{"full_name": {"a"}, "login_id": {"a"}, "role": {"developer"}, "password": {"correct-horse-battery"}}, "権限を一覧から選択してください。"},
		{"missing name", url.Values{"login_id": {"a"}, "role": {"staff"}, "password": {"correct-horse-battery"}}, "氏名を入力してください。"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.serve(testutil.NewFormRequest("/new", tt.form, testutil.AdminUser()))
			rec.AssertStatus(t, http.StatusBadRequest)
			rec.AssertContains(t, tt.want)
		})
	}
	assert.EqualValues(t, 0, f.countEvents(t, auditstore.EventOperatorCreated))
}

func TestCreate_DuplicateLoginID(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "uketsuke", models.RoleStaff)

	form := url.Values{"full_name": {"別人"}, "login_id": {"UKETSUKE"}, "role": {"staff"}, "password": {"correct-horse-battery"}}
	rec := f.serve(testutil.NewFormRequest("/new", form, testutil.AdminUser()))

	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "このログインIDはすでに使われています。")
}

func TestDisableAndEnable(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "kanri", models.RoleAdmin)
	staff := f.seed(t, "uketsuke", models.RoleStaff)
	path := "/" + staff.ID.Hex()

	rec := f.serve(testutil.NewFormRequest(path+"/disable", url.Values{}, testutil.AdminUser()))
	rec.AssertRedirect(t, "/operators"+path+"?notice=disabled")

	ctx, cancel := testutil.TestContext()
	defer cancel()
	got, err := f.users.GetByID(ctx, staff.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Disabled, got.Status)

	rec = f.serve(testutil.NewFormRequest(path+"/enable", url.Values{}, testutil.AdminUser()))
	rec.AssertRedirect(t, "/operators"+path+"?notice=enabled")
	got, err = f.users.GetByID(ctx, staff.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Active, got.Status)

	assert.EqualValues(t, 1, f.countEvents(t, auditstore.EventOperatorDisabled))
	assert.EqualValues(t, 1, f.countEvents(t, auditstore.EventOperatorEnabled))
}

func TestDisable_Self(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "kanri2", models.RoleAdmin)
	me := f.seed(t, "kanri", models.RoleAdmin)
	path := "/" + me.ID.Hex()

	rec := f.serve(testutil.NewFormRequest(path+"/disable", url.Values{}, asUser(me)))

	rec.AssertRedirect(t, "/operators"+path+"?notice=cannot_disable_self")
	ctx, cancel := testutil.TestContext()
	defer cancel()
	got, err := f.users.GetByID(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Active, got.Status)
}

func TestDisable_LastAdmin(t *testing.T) {
	f := newFixture(t)
	only := f.seed(t, "kanri", models.RoleAdmin)
	path := "/" + only.ID.Hex()

	// The acting admin is not stored, so "kanri" is the only active admin.
	rec := f.serve(testutil.NewFormRequest(path+"/disable", url.Values{}, testutil.AdminUser()))

	rec.AssertRedirect(t, "/operators"+path+"?notice=last_admin")
	assert.EqualValues(t, 0, f.countEvents(t, auditstore.EventOperatorDisabled))
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	staff := f.seed(t, "uketsuke", models.RoleStaff)
	path := "/" + staff.ID.Hex() + "/reset-password"

	rec := f.serve(testutil.NewFormRequest(path, url.Values{"password": {"short"}}, testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, authutil.ErrPasswordTooShort.Error())

	rec = f.serve(testutil.NewFormRequest(path, url.Values{"password": {"new-secret-value"}}, testutil.AdminUser()))
	rec.AssertRedirect(t, "/operators/"+staff.ID.Hex()+"?notice=password_reset")

	ctx, cancel := testutil.TestContext()
	defer cancel()
	got, err := f.users.GetByID(ctx, staff.ID)
	require.NoError(t, err)
	assert.True(t, authutil.CheckPassword("new-secret-value", got.PasswordHash))
	assert.EqualValues(t, 1, f.countEvents(t, auditstore.EventOperatorPasswordReset))
}

func TestShow_NotFound(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"not-an-id", "64b7f0000000000000000000"} {
		rec := f.serve(testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, "/"+id, testutil.AdminUser()))
		rec.AssertStatus(t, http.StatusNotFound)
	}
}

func TestShow_HidesDisableForSelf(t *testing.T) {
	f := newFixture(t)
	me := f.seed(t, "kanri", models.RoleAdmin)

	rec := f.serve(testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, "/"+me.ID.Hex(), asUser(me)))

	rec.AssertStatus(t, http.StatusOK)
	assert.NotContains(t, rec.Body.String(), "/disable")
	rec.AssertContains(t, "/reset-password")
}
