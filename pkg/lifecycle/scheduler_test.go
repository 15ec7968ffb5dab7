package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovelabs/grove/pkg/zfs"
	"github.com/grovelabs/grove/pkg/zfs/zfstest"
)

// recorder counts lifecycle metric events in-process.
type recorder struct {
	mu         sync.Mutex
	cycles     int
	failed     int
	created    int
	destroyed  int
	validated  int
	skipped    int
}

func (r *recorder) RecordCycle(datasets int, d time.Duration, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles++
	if failed {
		r.failed++
	}
}

func (r *recorder) RecordSnapshotCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
}

func (r *recorder) RecordSnapshotDestroyed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyed++
}

func (r *recorder) RecordTransferValidated(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validated++
}

func (r *recorder) RecordTransferSkipped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped++
}

func newTestScheduler(t *testing.T, fake *zfstest.Fake, opts ...Option) *Scheduler {
	t.Helper()
	s, err := New(fake, "tank/plant", opts...)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return s
}

func seedPlants(t *testing.T, fake *zfstest.Fake, n int) []string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, fake.CreateIdempotent(ctx, "tank/plant"))
	names := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("tank/plant/%04d", i)
		require.NoError(t, fake.Create(ctx, name))
		names = append(names, name)
	}
	return names
}

func TestRunCycleSnapshotsEveryDataset(t *testing.T) {
	fake := zfstest.New(t.TempDir())
	plants := seedPlants(t, fake, 3)
	s := newTestScheduler(t, fake)

	require.NoError(t, s.RunCycle(context.Background()))

	// Every dataset in the cycle carries the same timestamped name.
	for _, ds := range plants {
		assert.Equal(t, []string{"backup-1700000000"}, fake.Snapshots(ds), "dataset %s", ds)
	}
}

func TestRunCycleTrimsToBelowMax(t *testing.T) {
	fake := zfstest.New(t.TempDir())
	plants := seedPlants(t, fake, 1)
	ds := plants[0]

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, fake.Snapshot(ctx, ds, fmt.Sprintf("backup-%d", i), false))
	}

	rec := &recorder{}
	s := newTestScheduler(t, fake, WithMaxSnapshots(5), WithMetrics(rec))
	require.NoError(t, s.RunCycle(ctx))

	// The cycle snapshot lands first, then the oldest are destroyed one
	// at a time until fewer than five remain.
	snaps := fake.Snapshots(ds)
	assert.Equal(t, []string{"backup-3", "backup-4", "backup-5", "backup-1700000000"}, snaps)
	assert.Equal(t, 2, rec.destroyed)
	assert.Equal(t, 1, rec.created)
}

func TestRunCycleSkipsTransferWithSingleSnapshot(t *testing.T) {
	fake := zfstest.New(t.TempDir())
	seedPlants(t, fake, 2)

	rec := &recorder{}
	s := newTestScheduler(t, fake, WithMetrics(rec))
	require.NoError(t, s.RunCycle(context.Background()))

	// Fresh datasets end the cycle with one snapshot each, so no
	// incremental stream can be produced yet.
	assert.Equal(t, 0, fake.CallCount("send"))
	assert.Equal(t, 2, rec.skipped)
	assert.Equal(t, 0, rec.validated)
}

func TestRunCycleValidatesBetweenTwoNewest(t *testing.T) {
	fake := zfstest.New(t.TempDir())
	plants := seedPlants(t, fake, 1)
	ds := plants[0]

	ctx := context.Background()
	require.NoError(t, fake.Snapshot(ctx, ds, "backup-1", false))

	rec := &recorder{}
	s := newTestScheduler(t, fake, WithMetrics(rec))
	require.NoError(t, s.RunCycle(ctx))

	assert.Equal(t, 1, fake.CallCount("send"))
	assert.Equal(t, 1, rec.validated)
	assert.Equal(t, 0, rec.skipped)
}

func TestRunCycleProcessesManyDatasetsWithFewWorkers(t *testing.T) {
	fake := zfstest.New(t.TempDir())
	plants := seedPlants(t, fake, 20)

	s := newTestScheduler(t, fake, WithWorkers(3))
	require.NoError(t, s.RunCycle(context.Background()))

	for _, ds := range plants {
		assert.Len(t, fake.Snapshots(ds), 1, "dataset %s", ds)
	}
}

// failingOps wraps the fake and fails snapshot creation for one dataset.
type failingOps struct {
	zfs.Ops
	failFor string
}

func (f *failingOps) Snapshot(ctx context.Context, dataset, name string, recursive bool) error {
	if dataset == f.failFor {
		return errors.New("injected snapshot failure")
	}
	return f.Ops.Snapshot(ctx, dataset, name, recursive)
}

func TestRunCycleReportsWorkerError(t *testing.T) {
	fake := zfstest.New(t.TempDir())
	plants := seedPlants(t, fake, 4)

	rec := &recorder{}
	ops := &failingOps{Ops: fake, failFor: plants[2]}
	s, err := New(ops, "tank/plant", WithMetrics(rec))
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	err = s.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), plants[2])
	assert.Equal(t, 1, rec.failed)
}

func TestRunStopsOnCancel(t *testing.T) {
	fake := zfstest.New(t.TempDir())
	seedPlants(t, fake, 1)

	s := newTestScheduler(t, fake, WithInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestNewRejectsInvalidRoot(t *testing.T) {
	_, err := New(zfstest.New(t.TempDir()), "tank@plant")
	assert.Error(t, err)
}
