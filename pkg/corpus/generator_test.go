package corpus

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovelabs/grove/internal/bytesize"
	"github.com/grovelabs/grove/internal/randutil"
)

var (
	dirPattern  = regexp.MustCompile(`^[0-9A-F]{4}$`)
	filePattern = regexp.MustCompile(`^[0-9A-F]{16}\.dat$`)
)

func TestGenerateShape(t *testing.T) {
	root := t.TempDir()

	const fileCount = 50
	minSize := bytesize.ByteSize(2 * ChunkSize)
	maxSize := bytesize.ByteSize(8 * ChunkSize)

	g, err := New(fileCount, minSize, maxSize, randutil.NewSeeded(1))
	require.NoError(t, err)
	require.NoError(t, g.Generate(root))

	var files int
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)

		if d.IsDir() {
			// Fan-out directories are exactly 4 uppercase hex characters,
			// at most two levels deep.
			assert.Regexp(t, dirPattern, d.Name(), "directory name %s", path)
			depth := len(splitPath(rel))
			assert.LessOrEqual(t, depth, 2, "directory depth of %s", rel)
			return nil
		}

		files++
		assert.Regexp(t, filePattern, d.Name(), "file name %s", path)
		assert.Len(t, splitPath(rel), 3, "files sit under two fan-out levels: %s", rel)

		info, err := d.Info()
		require.NoError(t, err)
		size := bytesize.ByteSize(info.Size())
		assert.GreaterOrEqual(t, size, minSize, "file %s too small", path)
		assert.LessOrEqual(t, size, maxSize, "file %s too large", path)
		assert.Zero(t, info.Size()%ChunkSize, "file %s is not whole chunks", path)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, fileCount, files, "corpus must contain exactly the configured file count")
}

func TestGenerateContentMix(t *testing.T) {
	root := t.TempDir()

	g, err := New(8, ChunkSize, 4*ChunkSize, randutil.NewSeeded(7))
	require.NoError(t, err)
	require.NoError(t, g.Generate(root))

	var randomChunks, repeatChunks int
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		for off := 0; off < len(data); off += ChunkSize {
			if isRepeated(data[off : off+ChunkSize]) {
				repeatChunks++
			} else {
				randomChunks++
			}
		}
		return nil
	})
	require.NoError(t, err)

	// With p=0.75 random per chunk both kinds show up over a few dozen
	// chunks.
	assert.Positive(t, randomChunks, "expected some random chunks")
	assert.Positive(t, repeatChunks, "expected some compressible chunks")
}

func TestNewRejectsBadShape(t *testing.T) {
	rng := randutil.NewSeeded(1)

	_, err := New(0, ChunkSize, ChunkSize, rng)
	assert.Error(t, err, "zero file count")

	_, err = New(1, 100, ChunkSize, rng)
	assert.Error(t, err, "min below one chunk")

	_, err = New(1, 4*ChunkSize, 2*ChunkSize, rng)
	assert.Error(t, err, "max below min")

	_, err = New(1, ChunkSize, ChunkSize, nil)
	assert.Error(t, err, "nil rng")
}

func isRepeated(chunk []byte) bool {
	for _, b := range chunk {
		if b != chunk[0] {
			return false
		}
	}
	return true
}

func splitPath(rel string) []string {
	return strings.Split(filepath.ToSlash(rel), "/")
}
