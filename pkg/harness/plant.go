package harness

import (
	"context"
	"fmt"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/grovelabs/grove/internal/logger"
	"github.com/grovelabs/grove/pkg/churn"
	"github.com/grovelabs/grove/pkg/metrics"
	"github.com/grovelabs/grove/pkg/zfs"
)

// Plant is a writable clone of a seed's final snapshot kept under
// continuous churn. Each plant is owned exclusively by its own set of
// churn engines; plants never share files.
type Plant struct {
	ops  zfs.Ops
	pool string
	id   int
	seed *Seed

	mount string
}

// Name returns the plant's dataset name, <pool>/plant/<4-digit-id>.
func (p *Plant) Name() string {
	return fmt.Sprintf("%s/plant/%04d", p.pool, p.id)
}

// Setup clones the plant from its seed's final snapshot. Any leftover
// dataset from a previous run is destroyed first so the clone always
// starts from the seed's exact state.
func (p *Plant) Setup(ctx context.Context) error {
	name := p.Name()

	if err := p.ops.Destroy(ctx, name, true); err != nil {
		return fmt.Errorf("destroying stale plant %s: %w", name, err)
	}
	if err := p.ops.Clone(ctx, p.seed.Name(), FinalSnapshot, name); err != nil {
		return fmt.Errorf("cloning plant %s: %w", name, err)
	}

	mount, err := p.ops.GetProperty(ctx, name, "mountpoint")
	if err != nil {
		return fmt.Errorf("resolving plant %s mountpoint: %w", name, err)
	}
	p.mount = mount

	logger.Info("plant ready",
		logger.KeyPlant, name,
		logger.KeySeed, p.seed.Name())
	return nil
}

// StartChurn launches n churn engines over the plant's tree on g. Each
// engine gets its own generator and runs until ctx is cancelled. The
// engines deliberately share no coordination; racing on the same file is
// part of the stress scenario.
func (p *Plant) StartChurn(ctx context.Context, g *errgroup.Group, n int, newRNG func() *rand.Rand, m metrics.ChurnMetrics) {
	for i := 0; i < n; i++ {
		eng := churn.New(p.mount, newRNG(), m)
		g.Go(func() error {
			eng.Run(ctx)
			return nil
		})
	}
	logger.Info("churn started",
		logger.KeyPlant, p.Name(),
		"threads", n)
}
