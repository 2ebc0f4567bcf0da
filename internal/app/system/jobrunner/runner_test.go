package jobrunner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	jobstore "github.com/dalemusser/stratamembers/internal/app/store/jobs"
	"github.com/dalemusser/stratamembers/internal/app/system/metrics"
	"github.com/dalemusser/stratamembers/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*jobstore.Store, *Runner, *metrics.Metrics) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := jobstore.New(db)
	m := metrics.NewWith(prometheus.NewRegistry())
	return store, New(store, zap.NewNop(), m, Config{PollInterval: 10 * time.Millisecond}), m
}

func TestRunNext_CompletesWithResult(t *testing.T) {
	store, r, m := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	r.Register("maintenance", "address_fix", func(ctx context.Context, job jobstore.Job) (map[string]any, error) {
		return map[string]any{"total": 7}, nil
	})
	job, err := store.Create(ctx, jobstore.CreateInput{QueueName: "maintenance", JobType: "address_fix"})
	require.NoError(t, err)

	ran, err := r.RunNext(ctx, "maintenance", "test")
	require.NoError(t, err)
	assert.True(t, ran)

	got, err := store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusCompleted, got.Status)
	assert.EqualValues(t, 7, got.Result["total"])
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.JobsFinished.WithLabelValues("address_fix", "completed")))

	ran, err = r.RunNext(ctx, "maintenance", "test")
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestRunNext_FailureKeepsPartialResult(t *testing.T) {
	store, r, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	r.Register("maintenance", "type_migration", func(ctx context.Context, job jobstore.Job) (map[string]any, error) {
		return map[string]any{"total": 3}, errors.New("cursor lost")
	})
	job, err := store.Create(ctx, jobstore.CreateInput{QueueName: "maintenance", JobType: "type_migration"})
	require.NoError(t, err)

	_, err = r.RunNext(ctx, "maintenance", "test")
	require.NoError(t, err)

	got, err := store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusFailed, got.Status)
	assert.Equal(t, "cursor lost", got.Error)
	assert.EqualValues(t, 3, got.Result["total"])
}

func TestRunNext_UnknownType(t *testing.T) {
	store, r, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	job, err := store.Create(ctx, jobstore.CreateInput{QueueName: "maintenance", JobType: "mystery"})
	require.NoError(t, err)

	ran, err := r.RunNext(ctx, "maintenance", "test")
	require.NoError(t, err)
	assert.True(t, ran)

	got, err := store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "mystery")
}

func TestStartProcessesQueueAndStops(t *testing.T) {
	store, r, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	var calls atomic.Int32
	r.Register("maintenance", "address_fix", func(ctx context.Context, job jobstore.Job) (map[string]any, error) {
		calls.Add(1)
		return nil, nil
	})
	for i := 0; i < 2; i++ {
		_, err := store.Create(ctx, jobstore.CreateInput{QueueName: "maintenance", JobType: "address_fix"})
		require.NoError(t, err)
	}

	require.NoError(t, r.Start())
	assert.Error(t, r.Start())

	require.Eventually(t, func() bool { return calls.Load() == 2 }, 5*time.Second, 20*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	assert.NoError(t, r.Stop(stopCtx))
}

func TestStopBeforeStart(t *testing.T) {
	r := New(nil, nil, nil, Config{})
	assert.NoError(t, r.Stop(context.Background()))
}
