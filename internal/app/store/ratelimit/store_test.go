package ratelimit

import (
	"testing"
	"time"

	"github.com/dalemusser/stratamembers/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, max int) *Store {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return New(db, Config{MaxAttempts: max, Window: 15 * time.Minute, Lockout: 30 * time.Minute})
}

func TestCheck_NoRecord(t *testing.T) {
	s := newStore(t, 5)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	d := s.Check(ctx, "newuser")
	assert.True(t, d.Allowed)
	assert.Equal(t, 5, d.Remaining)
	assert.Nil(t, d.LockedUntil)
}

func TestCheck_CaseInsensitive(t *testing.T) {
	s := newStore(t, 5)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := s.RecordFailure(ctx, "clerk01")
	require.NoError(t, err)

	d := s.Check(ctx, "  CLERK01 ")
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

func TestRecordFailure_LocksAtLimit(t *testing.T) {
	s := newStore(t, 3)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 2; i++ {
		until, err := s.RecordFailure(ctx, "lock")
		require.NoError(t, err)
		assert.Nil(t, until)
	}
	until, err := s.RecordFailure(ctx, "lock")
	require.NoError(t, err)
	require.NotNil(t, until)
	assert.True(t, until.After(time.Now().Add(29*time.Minute)))

	d := s.Check(ctx, "lock")
	assert.False(t, d.Allowed)
	assert.Equal(t, -1, d.Remaining)
	require.NotNil(t, d.LockedUntil)
}

func TestRecordFailure_WindowExpiryResets(t *testing.T) {
	s := newStore(t, 3)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now()
	s.now = func() time.Time { return base }
	_, _ = s.RecordFailure(ctx, "slow")
	_, _ = s.RecordFailure(ctx, "slow")

	s.now = func() time.Time { return base.Add(20 * time.Minute) }
	until, err := s.RecordFailure(ctx, "slow")
	require.NoError(t, err)
	assert.Nil(t, until)

	a, err := s.Get(ctx, "slow")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, 1, a.AttemptCount)
}

func TestClear(t *testing.T) {
	s := newStore(t, 5)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, _ = s.RecordFailure(ctx, "clear")
	require.NoError(t, s.Clear(ctx, "CLEAR"))

	a, err := s.Get(ctx, "clear")
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.Equal(t, 5, s.Check(ctx, "clear").Remaining)
}

func TestDisabledStore(t *testing.T) {
	s := newStore(t, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	until, err := s.RecordFailure(ctx, "any")
	require.NoError(t, err)
	assert.Nil(t, until)
	assert.True(t, s.Check(ctx, "any").Allowed)
}
