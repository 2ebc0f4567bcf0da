package dashboard

import (
	"net/http"
	"strings"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/stratamembers/internal/app/features/errors"
	jobstore "github.com/dalemusser/stratamembers/internal/app/store/jobs"
	memberstore "github.com/dalemusser/stratamembers/internal/app/store/members"
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/memberfix"
	"github.com/dalemusser/stratamembers/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newHandler(t *testing.T) (*Handler, *mongo.Database) {
	t.Helper()
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	return NewHandler(db, errorsfeature.NewErrorLogger(logger), logger), db
}

func seedMembers(t *testing.T, db *mongo.Database, inputs ...memberstore.CreateInput) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	for _, in := range inputs {
		if _, err := memberstore.New(db).Create(ctx, in); err != nil {
			t.Fatalf("seed member %q: %v", in.Name, err)
		}
	}
}

func TestRoutes_AnonymousRedirectsToLogin(t *testing.T) {
	h, _ := newHandler(t)
	sessionMgr, err := auth.NewSessionManager(
		"test-session-key-for-testing-1234567890",
		"test-session",
		"",
		time.Hour,
		false,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}

	req := testutil.NewRequest(http.MethodGet, "/")
	req.Header.Set("Accept", "text/html")
	rec := testutil.NewRecorder()
	Routes(h, sessionMgr).ServeHTTP(rec, req)

	rec.AssertStatus(t, http.StatusSeeOther)
	rec.AssertRedirect(t, "/login?return=%2F")
}

func TestDashboard_CountsByTypeAndPrefecture(t *testing.T) {
	h, db := newHandler(t)
	seedMembers(t, db,
		memberstore.CreateInput{Name: "佐藤 花子", Types: []string{"ベビマ"}, Address: "東京都新宿区西新宿"},
		memberstore.CreateInput{Name: "鈴木 一郎", Types: []string{"ベビマ", "ベビーヨガマスター"}, Address: "大阪府大阪市北区梅田"},
	)

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/dashboard", testutil.StaffUser())
	req = testutil.WithCSRFToken(req)
	rec := testutil.NewRecorder()
	h.showDashboard(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "ベビーヨガインストラクター")
	rec.AssertContains(t, "東京都")
	rec.AssertContains(t, "大阪府")
	if body := rec.Body.String(); strings.Contains(body, "データ整備") {
		t.Error("staff dashboard should not show batch summaries")
	}
}

func TestDashboard_RetiredTagIsListed(t *testing.T) {
	h, db := newHandler(t)
	seedMembers(t, db, memberstore.CreateInput{Name: "高橋 美咲", Types: []string{"ベビーマッサージ"}})

	req := testutil.WithCSRFToken(testutil.NewAuthenticatedRequest(http.MethodGet, "/dashboard", testutil.StaffUser()))
	rec := testutil.NewRecorder()
	h.showDashboard(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "旧区分")
}

func TestDashboard_AdminSeesLatestBatch(t *testing.T) {
	h, db := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	jobs := jobstore.New(db)
	job, err := jobs.Create(ctx, jobstore.CreateInput{QueueName: "maintenance", JobType: memberfix.BatchAddressFix})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	result, err := memberfix.Report{Batch: memberfix.BatchAddressFix, Total: 12, Changed: 3, Failed: 1}.ToMap()
	if err != nil {
		t.Fatalf("report map: %v", err)
	}
	if err := jobs.Complete(ctx, job.ID, result); err != nil {
		t.Fatalf("complete job: %v", err)
	}

	req := testutil.WithCSRFToken(testutil.NewAuthenticatedRequest(http.MethodGet, "/dashboard", testutil.AdminUser()))
	rec := testutil.NewRecorder()
	h.showDashboard(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "住所の整備")
	rec.AssertContains(t, "/maintenance/jobs/"+job.ID.Hex())
	rec.AssertContains(t, "未実行") // type migration never ran
}

func TestTypeRows(t *testing.T) {
	rows := typeRows(memberstore.Counts{ByType: []memberstore.Bucket{
		{Key: "ベビーマッサージ", Count: 4},
		{Key: "ベビマ", Count: 2},
	}})
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	if rows[0].Type != "ベビマ" || rows[0].Count != 2 || rows[0].Retired {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	last := rows[3]
	if last.Type != "ベビーマッサージ" || !last.Retired || last.Count != 4 {
		t.Errorf("retired row = %+v", last)
	}
}
