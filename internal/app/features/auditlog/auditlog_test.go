package auditlog

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/stratamembers/internal/app/features/errors"
	"github.com/dalemusser/stratamembers/internal/app/store/audit"
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newRouter(t *testing.T) (http.Handler, *audit.Store) {
	t.Helper()
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	sm, err := auth.NewSessionManager("test-session-key-for-testing-1234567890", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	h := NewHandler(db, errorsfeature.NewErrorLogger(logger), logger)
	return Routes(h, sm), audit.New(db)
}

func logEvents(t *testing.T, store *audit.Store, events ...audit.Event) {
	t.Helper()
	for _, e := range events {
		if err := store.Log(context.Background(), e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
}

func TestList_FiltersByCategory(t *testing.T) {
	router, store := newRouter(t)
	memberID := primitive.NewObjectID()
	logEvents(t, store,
		audit.Event{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, Success: true, Details: map[string]string{"login_id": "staff"}},
		audit.Event{Category: audit.CategoryMember, EventType: audit.EventMemberUpdated, MemberID: &memberID, Success: true,
			Details: map[string]string{"name": "佐藤 花子", "fields": "phone"}},
	)

	rec := testutil.NewRecorder()
	req := testutil.WithCSRFToken(testutil.NewAuthenticatedRequest(http.MethodGet, "/?category="+audit.CategoryMember, testutil.AdminUser()))
	router.ServeHTTP(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "会員更新")
	rec.AssertContains(t, "fields=phone")
	rec.AssertContains(t, "/members/"+memberID.Hex())
	if strings.Contains(rec.Body.String(), "<td>ログイン</td>") {
		t.Error("category filter should exclude auth events")
	}
}

func TestList_StaffForbidden(t *testing.T) {
	router, _ := newRouter(t)
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/", testutil.StaffUser()))
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestEventTypesForCategory(t *testing.T) {
	if got := len(eventTypesForCategory(audit.CategoryMaintenance)); got != 2 {
		t.Errorf("maintenance event types = %d, want 2", got)
	}
	all := eventTypesForCategory("")
	if len(all) != 16 {
		t.Errorf("all event types = %d, want 16", len(all))
	}
	if eventTypesForCategory("unknown") != nil {
		t.Error("unknown category should have no event types")
	}
}

func TestToItem_FallsBackToLoginID(t *testing.T) {
	item := toItem(audit.Event{
		EventType:     audit.EventLoginFailedUserNotFound,
		FailureReason: "user not found",
		Details:       map[string]string{"attempted_login_id": "ghost"},
	}, nil)
	if item.ActorName != "ghost" {
		t.Errorf("ActorName = %q, want ghost", item.ActorName)
	}
	if item.Details != "user not found" {
		t.Errorf("Details = %q", item.Details)
	}
}

func TestPageURL_KeepsFilters(t *testing.T) {
	q := map[string][]string{"category": {"member"}, "page": {"3"}}
	got := pageURL(q, 4)
	if got != "/audit?category=member&page=4" {
		t.Errorf("pageURL = %q", got)
	}
}
