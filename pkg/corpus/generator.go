// Package corpus populates a dataset with a randomized file tree.
//
// The corpus has a deterministic shape and random content: a fixed number
// of files spread over a two-level hexadecimal fan-out, each filled with a
// bimodal mix of incompressible and maximally compressible chunks. The mix
// exists to stress both the compression and the raw-throughput paths of
// the storage engine underneath.
package corpus

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/grovelabs/grove/internal/bytesize"
)

const (
	// ChunkSize is the unit of content generation.
	ChunkSize = 16 * 1024

	// fanout is the number of directories per fan-out level.
	fanout = 16

	// randomChunkProbability is the chance that a chunk is filled with
	// random bytes rather than a single repeated byte.
	randomChunkProbability = 0.75

	// fillByte fills the compressible chunks.
	fillByte = 'A'
)

// DefaultFileCount is the seed corpus size.
const DefaultFileCount = 1000

// Default file size bounds.
const (
	DefaultMinFileSize = 2 * bytesize.MiB
	DefaultMaxFileSize = 32 * bytesize.MiB
)

// Generator writes a randomized corpus under a directory root.
type Generator struct {
	// FileCount is the exact number of files to create.
	FileCount int

	// MinFileSize and MaxFileSize bound the per-file size draw. Sizes
	// are rounded down to whole chunks, so both bounds should be chunk
	// multiples.
	MinFileSize bytesize.ByteSize
	MaxFileSize bytesize.ByteSize

	rng *rand.Rand
}

// New returns a Generator with the given shape. The rng is required;
// callers own its seeding.
func New(fileCount int, minSize, maxSize bytesize.ByteSize, rng *rand.Rand) (*Generator, error) {
	if fileCount <= 0 {
		return nil, fmt.Errorf("corpus file count must be positive, got %d", fileCount)
	}
	if minSize < ChunkSize {
		return nil, fmt.Errorf("minimum file size %s is below one chunk (%d bytes)", minSize, ChunkSize)
	}
	if maxSize < minSize {
		return nil, fmt.Errorf("maximum file size %s is below minimum %s", maxSize, minSize)
	}
	if rng == nil {
		return nil, fmt.Errorf("nil rng")
	}
	return &Generator{
		FileCount:   fileCount,
		MinFileSize: minSize,
		MaxFileSize: maxSize,
		rng:         rng,
	}, nil
}

// Generate populates root with the corpus. Any I/O error aborts
// generation; no partial cleanup is attempted here, the caller's
// destroy-and-recreate policy is the recovery path.
func (g *Generator) Generate(root string) error {
	buf := make([]byte, ChunkSize)

	for i := 0; i < g.FileCount; i++ {
		path, err := g.pickPath(root)
		if err != nil {
			return err
		}
		if err := g.writeFile(path, buf); err != nil {
			return fmt.Errorf("corpus file %s: %w", path, err)
		}
	}
	return nil
}

// pickPath draws the fan-out directories and file name, creating the
// directories on demand. MkdirAll makes repeated draws of the same
// directory pair idempotent.
func (g *Generator) pickPath(root string) (string, error) {
	l0 := g.rng.Uint64N(fanout)
	l1 := g.rng.Uint64N(fanout)

	dir := filepath.Join(root, fmt.Sprintf("%04X", l0), fmt.Sprintf("%04X", l1))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("corpus directory %s: %w", dir, err)
	}

	return filepath.Join(dir, fmt.Sprintf("%016X.dat", g.rng.Uint64())), nil
}

// writeFile fills one file with the bimodal chunk mix.
func (g *Generator) writeFile(path string, buf []byte) error {
	chunks := g.pickChunkCount()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)

	for c := uint64(0); c < chunks; c++ {
		if g.rng.Float64() < randomChunkProbability {
			fillRandom(g.rng, buf)
		} else {
			fillRepeat(buf, fillByte)
		}
		if _, err := bw.Write(buf); err != nil {
			f.Close()
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// pickChunkCount draws a size uniformly over whole chunks in
// [MinFileSize, MaxFileSize].
func (g *Generator) pickChunkCount() uint64 {
	minChunks := g.MinFileSize.Uint64() / ChunkSize
	maxChunks := g.MaxFileSize.Uint64() / ChunkSize
	return minChunks + g.rng.Uint64N(maxChunks-minChunks+1)
}

// fillRandom fills buf with uniformly random bytes.
func fillRandom(rng *rand.Rand, buf []byte) {
	i := 0
	for ; i+8 <= len(buf); i += 8 {
		binary.LittleEndian.PutUint64(buf[i:], rng.Uint64())
	}
	if i < len(buf) {
		v := rng.Uint64()
		for ; i < len(buf); i++ {
			buf[i] = byte(v)
			v >>= 8
		}
	}
}

// fillRepeat fills buf with a single byte.
func fillRepeat(buf []byte, b byte) {
	for i := range buf {
		buf[i] = b
	}
}
