package memberstore

import (
	"context"
	"testing"

	"github.com/dalemusser/stratamembers/internal/app/system/qualtype"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"github.com/dalemusser/stratamembers/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create_Normalizes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m, err := store.Create(ctx, CreateInput{
		Number:        "０１２３",
		Name:          " 山田　花子 ",
		Furigana:      "やまだ はなこ",
		Types:         []string{"ベビマ", "", "ベビマ", "ベビーヨガマスター"},
		Phone:         "０３－１２３４－５６７８",
		Email:         " Hanako@Example.JP ",
		PostalCode:    "１６０－００２３",
		Address:       "東京都新宿区西新宿",
		StreetAddress: "２－８－１",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if m.ID.IsZero() || m.CreatedAt.IsZero() {
		t.Error("Create() did not assign ID and timestamps")
	}
	checks := []struct {
		field, got, want string
	}{
		{"Number", m.Number, "0123"},
		{"Name", m.Name, "山田 花子"},
		{"Furigana", m.Furigana, "ヤマダ ハナコ"},
		{"Type", m.Type, "ベビマ"},
		{"Phone", m.Phone, "03-1234-5678"},
		{"Email", m.Email, "hanako@example.jp"},
		{"PostalCode", m.PostalCode, "1600023"},
		{"Prefecture", m.Prefecture, "東京都"},
		{"StreetAddress", m.StreetAddress, "2-8-1"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("Create() %s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if len(m.Types) != 2 || m.Types[0] != "ベビマ" || m.Types[1] != "ベビーヨガマスター" {
		t.Errorf("Create() Types = %v", m.Types)
	}
}

func TestStore_Create_Invalid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, CreateInput{Name: "  "}); err == nil {
		t.Error("Create() without name should fail")
	}
	if _, err := store.Create(ctx, CreateInput{Name: "x", PostalCode: "123"}); err != ErrInvalidPostalCode {
		t.Errorf("Create() short postal code error = %v, want %v", err, ErrInvalidPostalCode)
	}
}

func TestStore_Create_DuplicateNumber(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, CreateInput{Name: "A", Number: "100"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.Create(ctx, CreateInput{Name: "B", Number: "１００"}); err != ErrDuplicateNumber {
		t.Errorf("Create() duplicate error = %v, want %v", err, ErrDuplicateNumber)
	}
	// Members without a number do not collide.
	for _, n := range []string{"C", "D"} {
		if _, err := store.Create(ctx, CreateInput{Name: n}); err != nil {
			t.Errorf("Create(%s) without number error = %v", n, err)
		}
	}
}

func TestStore_GetByID_LegacyRecord(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id := primitive.NewObjectID()
	if _, err := db.Collection(CollectionName).InsertOne(ctx, bson.M{
		"_id":  id,
		"name": "旧データ",
		"type": "ベビーマッサージ",
	}); err != nil {
		t.Fatalf("insert legacy record: %v", err)
	}

	m, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(m.Types) != 1 || m.Types[0] != "ベビーマッサージ" || m.Type != "ベビーマッサージ" {
		t.Errorf("GetByID() Types = %v, Type = %q", m.Types, m.Type)
	}

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); err != ErrNotFound {
		t.Errorf("GetByID() missing error = %v, want %v", err, ErrNotFound)
	}
}

func TestStore_Update(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m, err := store.Create(ctx, CreateInput{Name: "佐藤", Types: []string{"ベビマ"}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	types := []string{"ベビーヨガインストラクター", "ベビマ"}
	addr := "大阪府大阪市北区梅田１－１"
	updated, err := store.Update(ctx, m.ID, UpdateInput{Types: &types, Address: &addr})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Type != "ベビーヨガインストラクター" {
		t.Errorf("Update() Type = %q, want first tag", updated.Type)
	}
	if updated.Address != "大阪府大阪市北区梅田1-1" || updated.Prefecture != "大阪府" {
		t.Errorf("Update() Address = %q, Prefecture = %q", updated.Address, updated.Prefecture)
	}
	if updated.Name != "佐藤" {
		t.Errorf("Update() Name = %q, nil fields must be kept", updated.Name)
	}

	got, _ := store.GetByID(ctx, m.ID)
	if got.Type != "ベビーヨガインストラクター" || len(got.Types) != 2 {
		t.Errorf("stored Types = %v, Type = %q", got.Types, got.Type)
	}

	if _, err := store.Update(ctx, primitive.NewObjectID(), UpdateInput{}); err != ErrNotFound {
		t.Errorf("Update() missing error = %v, want %v", err, ErrNotFound)
	}
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m, _ := store.Create(ctx, CreateInput{Name: "削除"})
	if err := store.Delete(ctx, m.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, m.ID); err != ErrNotFound {
		t.Errorf("Delete() twice error = %v, want %v", err, ErrNotFound)
	}
}

func TestStore_ApplyNormalization(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m, _ := store.Create(ctx, CreateInput{Name: "正規化", Types: []string{"ベビーマッサージマスター"}, Address: "東京都新宿区西新宿2-8-1"})

	city, street := "東京都新宿区西新宿", "2-8-1"
	err := store.ApplyNormalization(ctx, m.ID, Patch{
		Address:       &city,
		StreetAddress: &street,
		Types:         []string{"ベビマ"},
	})
	if err != nil {
		t.Fatalf("ApplyNormalization() error = %v", err)
	}

	got, _ := store.GetByID(ctx, m.ID)
	if got.Address != city || got.StreetAddress != street {
		t.Errorf("address = %q / %q", got.Address, got.StreetAddress)
	}
	if got.Type != "ベビマ" || len(got.Types) != 1 {
		t.Errorf("types = %v, type = %q", got.Types, got.Type)
	}

	if err := store.ApplyNormalization(ctx, m.ID, Patch{}); err != nil {
		t.Errorf("ApplyNormalization() empty patch error = %v", err)
	}
	if err := store.ApplyNormalization(ctx, primitive.NewObjectID(), Patch{Types: []string{"x"}}); err != ErrNotFound {
		t.Errorf("ApplyNormalization() missing error = %v, want %v", err, ErrNotFound)
	}
}

func seed(t *testing.T, ctx context.Context, store *Store, inputs ...CreateInput) {
	t.Helper()
	n, rejected, err := store.InsertMany(ctx, inputs)
	if err != nil || len(rejected) != 0 || n != len(inputs) {
		t.Fatalf("InsertMany() = %d, %v, %v", n, rejected, err)
	}
}

func TestStore_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	seed(t, ctx, store,
		CreateInput{Name: "山田花子", Furigana: "やまだはなこ", Types: []string{"ベビマ"}, Address: "東京都新宿区"},
		CreateInput{Name: "山本太郎", Furigana: "ヤマモトタロウ", Types: []string{"ベビーヨガマスター"}, Address: "大阪府大阪市"},
		CreateInput{Name: "佐藤次郎", Furigana: "サトウジロウ", Types: []string{"ベビマ", "ベビーヨガマスター"}, Address: "東京都渋谷区"},
	)

	tests := []struct {
		name   string
		filter ListFilter
		want   int64
	}{
		{"all", ListFilter{}, 3},
		{"name substring", ListFilter{Search: "山"}, 2},
		{"furigana hiragana matches katakana", ListFilter{Search: "やまもと"}, 1},
		{"type", ListFilter{Type: "ベビマ"}, 2},
		{"prefecture", ListFilter{Prefecture: "東京都"}, 2},
		{"combined", ListFilter{Search: "佐藤", Type: "ベビーヨガマスター", Prefecture: "東京都"}, 1},
		{"regex characters are literal", ListFilter{Search: ".*"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := store.List(ctx, tt.filter, 1, 50)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.TotalCount != tt.want || int64(len(res.Members)) != tt.want {
				t.Errorf("List() total = %d (%d rows), want %d", res.TotalCount, len(res.Members), tt.want)
			}
		})
	}

	page, err := store.List(ctx, ListFilter{}, 2, 2)
	if err != nil {
		t.Fatalf("List() page 2 error = %v", err)
	}
	if len(page.Members) != 1 || page.TotalPages != 2 {
		t.Errorf("List() page 2 = %d rows, %d pages", len(page.Members), page.TotalPages)
	}
}

func TestStore_SearchByFuriganaPrefix(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	seed(t, ctx, store,
		CreateInput{Name: "山田", Furigana: "ヤマダ"},
		CreateInput{Name: "山本", Furigana: "やまもと"},
		CreateInput{Name: "佐藤", Furigana: "サトウ"},
	)

	got, err := store.SearchByFuriganaPrefix(ctx, "やま", 10)
	if err != nil {
		t.Fatalf("SearchByFuriganaPrefix() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("SearchByFuriganaPrefix() = %d members, want 2", len(got))
	}
	if none, _ := store.SearchByFuriganaPrefix(ctx, " ", 10); none != nil {
		t.Errorf("SearchByFuriganaPrefix(blank) = %v, want nil", none)
	}
}

func TestStore_EachAndCounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	seed(t, ctx, store,
		CreateInput{Name: "A", Types: []string{"ベビマ", "ベビーヨガマスター"}, Prefecture: "大阪府"},
		CreateInput{Name: "B", Types: []string{"ベビマ"}, Prefecture: "北海道"},
		CreateInput{Name: "C", Prefecture: "大阪府"},
	)
	if _, err := db.Collection(CollectionName).InsertOne(ctx, bson.M{"name": "legacy", "type": "ベビマ", "prefecture": "沖縄県"}); err != nil {
		t.Fatalf("insert legacy: %v", err)
	}

	var names []string
	if err := store.Each(ctx, func(m models.Member) error {
		names = append(names, m.Name)
		return nil
	}); err != nil {
		t.Fatalf("Each() error = %v", err)
	}
	if len(names) != 4 {
		t.Errorf("Each() visited %d members, want 4", len(names))
	}

	c, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if c.Total != 4 {
		t.Errorf("Counts() Total = %d, want 4", c.Total)
	}
	if got := c.TypeCount(qualtype.BabyMa); got != 3 {
		t.Errorf("TypeCount(ベビマ) = %d, want 3", got)
	}
	if got := c.TypeCount("ベビーヨガマスター"); got != 1 {
		t.Errorf("TypeCount(ベビーヨガマスター) = %d, want 1", got)
	}
	if len(c.ByPrefecture) != 3 || c.ByPrefecture[0].Key != "北海道" || c.ByPrefecture[2].Key != "沖縄県" {
		t.Errorf("ByPrefecture = %+v, want JIS order", c.ByPrefecture)
	}
}

func TestStore_InsertMany_Rejects(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	n, rejected, err := store.InsertMany(ctx, []CreateInput{
		{Name: "ok"},
		{Name: ""},
		{Name: "bad postal", PostalCode: "12"},
	})
	if err != nil {
		t.Fatalf("InsertMany() error = %v", err)
	}
	if n != 1 || len(rejected) != 2 || rejected[1] == nil || rejected[2] != ErrInvalidPostalCode {
		t.Errorf("InsertMany() = %d, %v", n, rejected)
	}
}
