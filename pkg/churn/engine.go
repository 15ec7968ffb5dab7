// Package churn drives continuous randomized read/write load against a
// file tree.
//
// An Engine repeatedly "sweeps" its root: it enumerates the current set of
// regular files, shuffles them into a fresh uniform permutation, and hits
// every file with a random number of single-kilobyte reads and writes at
// random block-aligned offsets. Multiple engines may run against the same
// root concurrently; they are deliberately uncoordinated so that racing
// I/O exercises the storage engine's own concurrency guarantees.
package churn

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/grovelabs/grove/internal/logger"
	"github.com/grovelabs/grove/pkg/metrics"
)

const (
	// blockSize is the unit of every churn read and write.
	blockSize = 1024

	// maxOpsPerFile bounds the per-file operation draw; the draw is
	// uniform in [1, maxOpsPerFile).
	maxOpsPerFile = 10_000

	// writeProbability is the chance an operation writes rather than
	// reads.
	writeProbability = 0.40

	// randomWriteProbability is the chance a written block is random
	// bytes rather than a single repeated byte.
	randomWriteProbability = 0.75

	// fillByte fills the compressible written blocks.
	fillByte = 'A'
)

// Engine churns one file tree. Each engine owns its PRNG and scratch
// buffer and must not be shared across goroutines; run several engines for
// concurrent load.
type Engine struct {
	root    string
	rng     *rand.Rand
	metrics metrics.ChurnMetrics
	buf     []byte

	// process churns one file. Overridable in tests.
	process func(path string) error
}

// New returns an Engine over root. Metrics may be nil.
func New(root string, rng *rand.Rand, m metrics.ChurnMetrics) *Engine {
	e := &Engine{
		root:    root,
		rng:     rng,
		metrics: m,
		buf:     make([]byte, blockSize),
	}
	e.process = e.churnFile
	return e
}

// Run sweeps until ctx is cancelled. The reference behavior runs forever;
// the cancellable handle exists so callers and tests can terminate
// deterministically.
func (e *Engine) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		visited := e.Sweep(ctx)
		if e.metrics != nil {
			e.metrics.RecordSweep(visited, time.Since(start))
		}
	}
}

// Sweep enumerates the current file tree and processes every regular file
// exactly once, in a fresh uniform random permutation. Per-file failures
// are logged and skipped; a sweep itself never fails. Returns the number
// of files visited.
func (e *Engine) Sweep(ctx context.Context) int {
	files := e.collectFiles()
	e.rng.Shuffle(len(files), func(i, j int) {
		files[i], files[j] = files[j], files[i]
	})

	visited := 0
	for _, path := range files {
		if ctx.Err() != nil {
			return visited
		}
		visited++
		if err := e.process(path); err != nil {
			logger.Error("churn file failed", logger.KeyPath, path, logger.KeyError, err)
			if e.metrics != nil {
				e.metrics.RecordFileError()
			}
		}
	}
	return visited
}

// collectFiles walks the root collecting regular files. Individual entry
// errors are logged and skipped; the walk never aborts.
func (e *Engine) collectFiles() []string {
	var files []string
	_ = filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Error("walk failure", logger.KeyPath, path, logger.KeyError, err)
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// churnFile opens path read/write and applies a random number of
// single-block operations at random aligned offsets.
func (e *Engine) churnFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	blocks := info.Size() / blockSize
	// The offset draw excludes the final (possibly partial) block, so a
	// file needs at least two full blocks to have a valid target.
	if blocks < 2 {
		return fmt.Errorf("file too small to churn: %d bytes", info.Size())
	}

	iops := 1 + e.rng.IntN(maxOpsPerFile-1)

	var reads, writes uint64
	for i := 0; i < iops; i++ {
		offset := e.pickOffset(blocks)
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return err
		}

		if e.rng.Float64() < writeProbability {
			e.fillBlock()
			if _, err := f.Write(e.buf); err != nil {
				return err
			}
			if err := f.Sync(); err != nil {
				return err
			}
			writes++
		} else {
			if _, err := io.ReadFull(f, e.buf); err != nil {
				return err
			}
			reads++
		}
	}

	if e.metrics != nil {
		e.metrics.RecordOps(reads, writes)
	}
	return nil
}

// pickOffset draws a block-aligned byte offset with block index in
// [0, blocks-1), keeping every operation strictly inside the file.
func (e *Engine) pickOffset(blocks int64) int64 {
	return e.rng.Int64N(blocks-1) * blockSize
}

// fillBlock fills the scratch buffer per the write content rule.
func (e *Engine) fillBlock() {
	if e.rng.Float64() < randomWriteProbability {
		for i := 0; i+8 <= len(e.buf); i += 8 {
			binary.LittleEndian.PutUint64(e.buf[i:], e.rng.Uint64())
		}
		return
	}
	for i := range e.buf {
		e.buf[i] = fillByte
	}
}
