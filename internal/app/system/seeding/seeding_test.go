package seeding

import (
	"strings"
	"testing"

	memberstore "github.com/dalemusser/stratamembers/internal/app/store/members"
	userstore "github.com/dalemusser/stratamembers/internal/app/store/users"
	"github.com/dalemusser/stratamembers/internal/app/system/authutil"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"github.com/dalemusser/stratamembers/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseMembers(t *testing.T) {
	in, err := ParseMembers(strings.NewReader(`
members:
  - name: 山田 花子
    type: ベビーマッサージ
    address: 渋谷区神宮前１－２－３
  - name: 佐藤
    types: [ベビマ, ベビーヨガマスター]
`))
	require.NoError(t, err)
	require.Len(t, in, 2)
	assert.Equal(t, []string{"ベビーマッサージ"}, in[0].Types)
	assert.Equal(t, "渋谷区神宮前１－２－３", in[0].Address)
	assert.Equal(t, []string{"ベビマ", "ベビーヨガマスター"}, in[1].Types)
}

func TestParseMembers_UnknownField(t *testing.T) {
	_, err := ParseMembers(strings.NewReader("members:\n  - name: x\n    colour: red\n"))
	assert.Error(t, err)
}

func TestParseMembers_Empty(t *testing.T) {
	in, err := ParseMembers(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, in)
}

func TestBundledSamplesParse(t *testing.T) {
	in, err := ParseMembers(strings.NewReader(string(sampleMembers)))
	require.NoError(t, err)
	assert.NotEmpty(t, in)
	for _, m := range in {
		assert.NotEmpty(t, m.Name)
	}
}

func TestSeedAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cfg := Config{
		Admin:         AdminConfig{LoginID: "admin", Password: "Sup3rSecret!", FullName: "管理者"},
		SampleMembers: true,
	}
	require.NoError(t, SeedAll(ctx, db, cfg, zap.NewNop()))
	// Second run is a no-op.
	require.NoError(t, SeedAll(ctx, db, cfg, zap.NewNop()))

	u, err := userstore.New(db).GetByLoginID(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.True(t, authutil.CheckPassword("Sup3rSecret!", u.PasswordHash))

	counts, err := memberstore.New(db).Counts(ctx)
	require.NoError(t, err)
	samples, _ := ParseMembers(strings.NewReader(string(sampleMembers)))
	assert.EqualValues(t, len(samples), counts.Total)
}

func TestSeedAdmin_Disabled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	require.NoError(t, SeedAdmin(ctx, userstore.New(db), AdminConfig{}, zap.NewNop()))
	n, err := userstore.New(db).CountActiveAdmins(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
