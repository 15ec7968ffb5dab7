package harness

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/grovelabs/grove/internal/bytesize"
	"github.com/grovelabs/grove/internal/logger"
	"github.com/grovelabs/grove/pkg/corpus"
	"github.com/grovelabs/grove/pkg/zfs"
)

// FinalSnapshot is the sentinel snapshot terminating seed setup. A seed
// is set up iff this snapshot exists; its absence means the corpus may be
// partial and the whole dataset is rebuilt from scratch.
const FinalSnapshot = "final"

// Seed is a dataset populated once with a randomized file corpus and
// frozen by the final snapshot, used as a clone template for plants.
type Seed struct {
	ops  zfs.Ops
	pool string
	id   int

	fileCount int
	minSize   bytesize.ByteSize
	maxSize   bytesize.ByteSize

	rng *rand.Rand
}

// Name returns the seed's dataset name, <pool>/seed/<4-digit-id>.
func (s *Seed) Name() string {
	return fmt.Sprintf("%s/seed/%04d", s.pool, s.id)
}

// Setup makes the seed ready for cloning. If the final snapshot already
// exists this is a no-op; otherwise any existing dataset is destroyed and
// the corpus is regenerated in full. There is no partial repair path.
func (s *Seed) Setup(ctx context.Context) error {
	name := s.Name()

	done, err := s.ops.SnapshotExists(ctx, name, FinalSnapshot)
	if err != nil {
		return fmt.Errorf("checking seed %s: %w", name, err)
	}
	if done {
		logger.Info("seed already set up", logger.KeySeed, name)
		return nil
	}

	logger.Info("building seed",
		logger.KeySeed, name,
		logger.KeyFiles, s.fileCount)

	if err := s.ops.Destroy(ctx, name, true); err != nil {
		return fmt.Errorf("destroying stale seed %s: %w", name, err)
	}
	if err := s.ops.Create(ctx, name); err != nil {
		return fmt.Errorf("creating seed %s: %w", name, err)
	}

	mount, err := s.ops.GetProperty(ctx, name, "mountpoint")
	if err != nil {
		return fmt.Errorf("resolving seed %s mountpoint: %w", name, err)
	}

	gen, err := corpus.New(s.fileCount, s.minSize, s.maxSize, s.rng)
	if err != nil {
		return fmt.Errorf("seed %s: %w", name, err)
	}
	if err := gen.Generate(mount); err != nil {
		return fmt.Errorf("populating seed %s: %w", name, err)
	}

	if err := s.ops.Snapshot(ctx, name, FinalSnapshot, false); err != nil {
		return fmt.Errorf("finalizing seed %s: %w", name, err)
	}

	logger.Info("seed ready", logger.KeySeed, name)
	return nil
}
