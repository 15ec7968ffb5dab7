package churn

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovelabs/grove/internal/randutil"
)

func writeTestFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{'x'}, size), 0o644))
	return path
}

func TestPickOffsetExcludesFinalBlock(t *testing.T) {
	e := New(t.TempDir(), randutil.NewSeeded(3), nil)

	// A file of 10 blocks: every offset must land on an aligned block
	// strictly before the last one.
	const blocks = 10
	for i := 0; i < 10_000; i++ {
		off := e.pickOffset(blocks)
		assert.Zero(t, off%blockSize, "offset must be block aligned")
		assert.GreaterOrEqual(t, off, int64(0))
		assert.Less(t, off+blockSize, int64(blocks*blockSize),
			"operation must stay strictly inside the file")
	}
}

func TestChurnFileTooSmall(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, randutil.NewSeeded(4), nil)

	// Below one block.
	tiny := writeTestFile(t, dir, "tiny.dat", 512)
	assert.Error(t, e.churnFile(tiny))

	// One full block plus a partial one still has no valid target.
	small := writeTestFile(t, dir, "small.dat", 1536)
	assert.Error(t, e.churnFile(small))

	// Two full blocks is the minimum churnable size.
	ok := writeTestFile(t, dir, "ok.dat", 2*blockSize)
	assert.NoError(t, e.churnFile(ok))
}

func TestChurnFilePreservesSize(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, randutil.NewSeeded(5), nil)

	const size = 16 * blockSize
	path := writeTestFile(t, dir, "churned.dat", size)

	require.NoError(t, e.churnFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(size), info.Size(),
		"in-place churn must never grow or shrink the file")
}

func TestSweepVisitsEveryFileOnce(t *testing.T) {
	dir := t.TempDir()
	want := make([]string, 0, 8)
	for _, name := range []string{"a.dat", "b.dat", "c.dat", "d.dat", "e.dat"} {
		want = append(want, writeTestFile(t, dir, name, 4*blockSize))
	}
	sort.Strings(want)

	e := New(dir, randutil.NewSeeded(6), nil)

	for sweep := 0; sweep < 20; sweep++ {
		var got []string
		e.process = func(path string) error {
			got = append(got, path)
			return nil
		}

		visited := e.Sweep(context.Background())
		assert.Equal(t, len(want), visited)

		sorted := append([]string(nil), got...)
		sort.Strings(sorted)
		assert.Equal(t, want, sorted, "sweep %d must visit each file exactly once", sweep)
	}
}

func TestSweepOrderIsUniform(t *testing.T) {
	dir := t.TempDir()
	files := []string{"a.dat", "b.dat", "c.dat", "d.dat", "e.dat"}
	for _, name := range files {
		writeTestFile(t, dir, name, 4*blockSize)
	}

	e := New(dir, randutil.NewSeeded(7), nil)

	// Count how often each file leads a sweep. A uniform permutation
	// puts any given file first with probability 1/5.
	leads := make(map[string]int)
	const sweeps = 5000
	for i := 0; i < sweeps; i++ {
		first := ""
		e.process = func(path string) error {
			if first == "" {
				first = filepath.Base(path)
			}
			return nil
		}
		e.Sweep(context.Background())
		leads[first]++
	}

	expected := sweeps / len(files)
	for _, name := range files {
		assert.InDelta(t, expected, leads[name], float64(expected)/4,
			"file %s leads sweeps disproportionately", name)
	}
}

func TestSweepContinuesPastFailingFile(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "bad.dat", 100) // too small, will fail
	writeTestFile(t, dir, "good.dat", 4*blockSize)

	e := New(dir, randutil.NewSeeded(8), nil)
	visited := e.Sweep(context.Background())

	assert.Equal(t, 2, visited, "a failing file must not abort the sweep")
}

func TestRunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.dat", 2*blockSize)

	e := New(dir, randutil.NewSeeded(9), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	cancel()
	<-done
}
