package login

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/stratamembers/internal/app/features/errors"
	"github.com/dalemusser/stratamembers/internal/app/store/audit"
	"github.com/dalemusser/stratamembers/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/stratamembers/internal/app/store/users"
	"github.com/dalemusser/stratamembers/internal/app/system/auditlog"
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/authutil"
	"github.com/dalemusser/stratamembers/internal/app/system/status"
	"github.com/dalemusser/stratamembers/internal/testutil"
	"go.uber.org/zap"
)

type memSink struct{ events []audit.Event }

func (s *memSink) Log(_ context.Context, e audit.Event) error {
	s.events = append(s.events, e)
	return nil
}

func (s *memSink) last() string {
	if len(s.events) == 0 {
		return ""
	}
	return s.events[len(s.events)-1].EventType
}

type fixture struct {
	h     *Handler
	users *userstore.Store
	sink  *memSink
}

func newFixture(t *testing.T, maxAttempts int) fixture {
	t.Helper()
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	sm, err := auth.NewSessionManager("test-session-key-for-testing-1234567890", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	sink := &memSink{}
	rl := ratelimit.New(db, ratelimit.Config{MaxAttempts: maxAttempts, Window: 15 * time.Minute, Lockout: 15 * time.Minute})
	h := NewHandler(db, sm, errorsfeature.NewErrorLogger(logger), auditlog.New(sink, logger, auditlog.Config{}), rl, logger)
	return fixture{h: h, users: userstore.New(db), sink: sink}
}

func (f fixture) createOperator(t *testing.T, loginID, password string) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	hash, err := authutil.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if _, err := f.users.Create(ctx, userstore.CreateInput{
		FullName: "事務局", LoginID: loginID, Role: "staff", PasswordHash: hash,
	}); err != nil {
		t.Fatalf("create operator: %v", err)
	}
}

func post(f fixture, loginID, password, ret string) *testutil.ResponseRecorder {
	form := url.Values{"login_id": {loginID}, "password": {password}, "return": {ret}}
	rec := testutil.NewRecorder()
	Routes(f.h).ServeHTTP(rec, testutil.NewFormRequest("/", form, testutil.TestUser{}))
	return rec
}

func TestShowLogin(t *testing.T) {
	f := newFixture(t, 5)
	rec := testutil.NewRecorder()
	Routes(f.h).ServeHTTP(rec, testutil.WithCSRFToken(testutil.NewRequest(http.MethodGet, "/?return=/members")))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `value="/members"`)
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t, 5)
	f.createOperator(t, "clerk", "correct-horse")

	rec := post(f, "CLERK", "correct-horse", "/members?page=2")
	rec.AssertRedirect(t, "/members?page=2")
	if f.sink.last() != audit.EventLoginSuccess {
		t.Errorf("last audit event = %q, want login_success", f.sink.last())
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("expected a session cookie")
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	u, err := f.users.GetByLoginID(ctx, "clerk")
	if err != nil {
		t.Fatalf("GetByLoginID: %v", err)
	}
	if u.LastLoginAt == nil {
		t.Error("LastLoginAt not recorded")
	}
}

func TestLogin_UnsafeReturnFallsBackToDashboard(t *testing.T) {
	f := newFixture(t, 5)
	f.createOperator(t, "clerk", "correct-horse")

	rec := post(f, "clerk", "correct-horse", "https://evil.example/")
	rec.AssertRedirect(t, "/dashboard")
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t, 5)
	f.createOperator(t, "clerk", "correct-horse")

	rec := post(f, "clerk", "wrong-horse", "")
	rec.AssertStatus(t, http.StatusUnauthorized)
	rec.AssertContains(t, msgInvalid)
	if f.sink.last() != audit.EventLoginFailedWrongPassword {
		t.Errorf("last audit event = %q", f.sink.last())
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	f := newFixture(t, 5)

	rec := post(f, "ghost", "whatever-pass", "")
	rec.AssertStatus(t, http.StatusUnauthorized)
	if f.sink.last() != audit.EventLoginFailedUserNotFound {
		t.Errorf("last audit event = %q", f.sink.last())
	}
}

func TestLogin_MissingFields(t *testing.T) {
	f := newFixture(t, 5)
	rec := post(f, "", "", "")
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestLogin_DisabledOperator(t *testing.T) {
	f := newFixture(t, 5)
	f.createOperator(t, "gone", "correct-horse")

	ctx, cancel := testutil.TestContext()
	defer cancel()
	u, err := f.users.GetByLoginID(ctx, "gone")
	if err != nil {
		t.Fatalf("GetByLoginID: %v", err)
	}
	if err := f.users.SetStatus(ctx, u.ID, status.Disabled); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	rec := post(f, "gone", "correct-horse", "")
	rec.AssertStatus(t, http.StatusForbidden)
	if f.sink.last() != audit.EventLoginFailedUserDisabled {
		t.Errorf("last audit event = %q", f.sink.last())
	}
}

func TestLogin_LocksOutAfterMaxAttempts(t *testing.T) {
	f := newFixture(t, 3)
	f.createOperator(t, "clerk", "correct-horse")

	for i := 0; i < 2; i++ {
		post(f, "clerk", "nope-nope", "").AssertStatus(t, http.StatusUnauthorized)
	}
	rec := post(f, "clerk", "nope-nope", "")
	rec.AssertStatus(t, http.StatusTooManyRequests)

	// Correct password is refused while locked.
	rec = post(f, "clerk", "correct-horse", "")
	rec.AssertStatus(t, http.StatusTooManyRequests)
	if !strings.Contains(rec.Body.String(), "ロック") {
		t.Error("expected lockout message")
	}
	if f.sink.last() != audit.EventLoginLockedOut {
		t.Errorf("last audit event = %q", f.sink.last())
	}
}
