package harness

import (
	"context"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovelabs/grove/internal/bytesize"
	"github.com/grovelabs/grove/internal/randutil"
	"github.com/grovelabs/grove/pkg/zfs/zfstest"
)

// testIO keeps the corpus tiny so setup tests stay fast.
var testIO = IOConfig{
	SeedCount:       2,
	PlantCount:      4,
	FileCount:       3,
	FileMinSize:     16 * bytesize.KiB,
	FileMaxSize:     64 * bytesize.KiB,
	ThreadsPerPlant: 1,
}

func seededSource() func() *rand.Rand {
	var seed uint64
	return func() *rand.Rand {
		seed++
		return randutil.NewSeeded(seed)
	}
}

func newTestHarness(t *testing.T, fake *zfstest.Fake) *Harness {
	t.Helper()
	h, err := New(fake, "tank", testIO, BackupConfig{}, WithRandSource(seededSource()))
	require.NoError(t, err)
	return h
}

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestSetupSeedsBuildsAndFinalizes(t *testing.T) {
	fake := zfstest.New(t.TempDir())
	h := newTestHarness(t, fake)
	ctx := context.Background()

	seeds, err := h.setupSeeds(ctx)
	require.NoError(t, err)
	require.Len(t, seeds, testIO.SeedCount)

	for _, seed := range seeds {
		done, err := fake.SnapshotExists(ctx, seed.Name(), FinalSnapshot)
		require.NoError(t, err)
		assert.True(t, done, "seed %s missing final snapshot", seed.Name())

		mount, err := fake.GetProperty(ctx, seed.Name(), "mountpoint")
		require.NoError(t, err)
		assert.Equal(t, testIO.FileCount, countFiles(t, mount))
	}
}

func TestSetupSeedsIsIdempotent(t *testing.T) {
	fake := zfstest.New(t.TempDir())
	h := newTestHarness(t, fake)
	ctx := context.Background()

	_, err := h.setupSeeds(ctx)
	require.NoError(t, err)

	// A second pass over finalized seeds must not destroy, regenerate,
	// or re-snapshot anything.
	fake.ResetCalls()
	_, err = h.setupSeeds(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, fake.CallCount("destroy"))
	assert.Equal(t, 0, fake.CallCount("snapshot"))
	// Only the idempotent container creates run again.
	assert.Equal(t, 2, fake.CallCount("create"))
}

func TestSetupSeedsRebuildsWhenFinalMissing(t *testing.T) {
	fake := zfstest.New(t.TempDir())
	h := newTestHarness(t, fake)
	ctx := context.Background()

	// A seed dataset without the final snapshot is a partial setup. Drop
	// a marker file in it to prove the rebuild starts from scratch.
	require.NoError(t, fake.CreateIdempotent(ctx, "tank"))
	require.NoError(t, fake.CreateIdempotent(ctx, "tank/seed"))
	require.NoError(t, fake.Create(ctx, "tank/seed/0000"))
	mount, err := fake.GetProperty(ctx, "tank/seed/0000", "mountpoint")
	require.NoError(t, err)
	marker := filepath.Join(mount, "leftover.dat")
	require.NoError(t, os.WriteFile(marker, []byte("partial"), 0o644))

	_, err = h.setupSeeds(ctx)
	require.NoError(t, err)

	assert.Positive(t, fake.CallCount("destroy"))

	mount, err = fake.GetProperty(ctx, "tank/seed/0000", "mountpoint")
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(mount, "leftover.dat"))
	assert.True(t, os.IsNotExist(statErr), "partial corpus must be destroyed, not repaired")
	assert.Equal(t, testIO.FileCount, countFiles(t, mount))
}

func TestSetupPlantsReplacesPreviousRun(t *testing.T) {
	fake := zfstest.New(t.TempDir())
	h := newTestHarness(t, fake)
	ctx := context.Background()

	seeds, err := h.setupSeeds(ctx)
	require.NoError(t, err)

	// Leftover plant from an earlier run.
	require.NoError(t, fake.CreateIdempotent(ctx, "tank/plant"))
	require.NoError(t, fake.Create(ctx, "tank/plant/9999"))

	plants, err := h.setupPlants(ctx, seeds)
	require.NoError(t, err)
	require.Len(t, plants, testIO.PlantCount)

	assert.NotContains(t, fake.Datasets(), "tank/plant/9999")

	// Every plant starts as an exact copy of its seed's corpus.
	for _, plant := range plants {
		assert.Equal(t, testIO.FileCount, countFiles(t, plant.mount), "plant %s", plant.Name())
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	fake := zfstest.New(t.TempDir())

	_, err := New(fake, "tank@bad", testIO, BackupConfig{})
	assert.Error(t, err)

	inverted := testIO
	inverted.FileMinSize = 64 * bytesize.KiB
	inverted.FileMaxSize = 16 * bytesize.KiB
	_, err = New(fake, "tank", inverted, BackupConfig{})
	assert.Error(t, err)
}

func TestRunIOStopsOnCancel(t *testing.T) {
	fake := zfstest.New(t.TempDir())
	h := newTestHarness(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.RunIO(ctx) }()

	// Let setup and at least the start of churning happen, then stop.
	cancel()

	err := <-done
	assert.NoError(t, err)
}
