// Package harness is the top-level driver of the stress run. It owns
// dataset naming and lifetime: seeds under <pool>/seed, plants under
// <pool>/plant, and the two long-running modes built on them. The io
// mode builds seeds, clones plants from randomly chosen seeds, and keeps
// churn engines running over them; the backup mode runs snapshot
// lifecycle cycles over the plants the io mode created.
package harness

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/grovelabs/grove/internal/bytesize"
	"github.com/grovelabs/grove/internal/logger"
	"github.com/grovelabs/grove/internal/randutil"
	"github.com/grovelabs/grove/internal/telemetry"
	"github.com/grovelabs/grove/pkg/corpus"
	"github.com/grovelabs/grove/pkg/lifecycle"
	"github.com/grovelabs/grove/pkg/metrics"
	"github.com/grovelabs/grove/pkg/zfs"
)

// Defaults for the io mode.
const (
	DefaultSeedCount       = 10
	DefaultPlantCount      = 60
	DefaultThreadsPerPlant = 4
)

// IOConfig shapes the io mode: how many seeds to build, how many plants
// to clone from them, and how hard to churn each plant.
type IOConfig struct {
	SeedCount       int
	PlantCount      int
	FileCount       int
	FileMinSize     bytesize.ByteSize
	FileMaxSize     bytesize.ByteSize
	ThreadsPerPlant int
}

func (c *IOConfig) applyDefaults() {
	if c.SeedCount <= 0 {
		c.SeedCount = DefaultSeedCount
	}
	if c.PlantCount <= 0 {
		c.PlantCount = DefaultPlantCount
	}
	if c.FileCount <= 0 {
		c.FileCount = corpus.DefaultFileCount
	}
	if c.FileMinSize == 0 {
		c.FileMinSize = corpus.DefaultMinFileSize
	}
	if c.FileMaxSize == 0 {
		c.FileMaxSize = corpus.DefaultMaxFileSize
	}
	if c.ThreadsPerPlant <= 0 {
		c.ThreadsPerPlant = DefaultThreadsPerPlant
	}
}

// BackupConfig shapes the backup mode's lifecycle scheduler.
type BackupConfig struct {
	Workers      int
	MaxSnapshots int
	Interval     time.Duration
}

// Harness wires the storage engine, the corpus and churn machinery, and
// the lifecycle scheduler into the two run modes.
type Harness struct {
	ops  zfs.Ops
	pool string
	io   IOConfig
	bak  BackupConfig

	newRNG func() *rand.Rand

	churnMetrics     metrics.ChurnMetrics
	lifecycleMetrics metrics.LifecycleMetrics
}

// Option configures a Harness.
type Option func(*Harness)

// WithRandSource overrides the per-goroutine generator factory. Tests use
// this to inject seeded generators.
func WithRandSource(f func() *rand.Rand) Option {
	return func(h *Harness) {
		h.newRNG = f
	}
}

// WithChurnMetrics attaches churn metrics. Nil disables recording.
func WithChurnMetrics(m metrics.ChurnMetrics) Option {
	return func(h *Harness) {
		h.churnMetrics = m
	}
}

// WithLifecycleMetrics attaches lifecycle metrics. Nil disables recording.
func WithLifecycleMetrics(m metrics.LifecycleMetrics) Option {
	return func(h *Harness) {
		h.lifecycleMetrics = m
	}
}

// New returns a Harness over the given pool dataset.
func New(ops zfs.Ops, pool string, io IOConfig, bak BackupConfig, opts ...Option) (*Harness, error) {
	if err := zfs.ValidateDatasetName(pool); err != nil {
		return nil, err
	}
	io.applyDefaults()
	if io.FileMinSize > io.FileMaxSize {
		return nil, fmt.Errorf("file size bounds inverted: min %s > max %s", io.FileMinSize, io.FileMaxSize)
	}

	h := &Harness{
		ops:    ops,
		pool:   pool,
		io:     io,
		bak:    bak,
		newRNG: randutil.New,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Harness) seedRoot() string  { return h.pool + "/seed" }
func (h *Harness) plantRoot() string { return h.pool + "/plant" }

// RunIO builds the seeds and plants and churns the plants until ctx is
// cancelled.
func (h *Harness) RunIO(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "harness.io")
	defer span.End()
	telemetry.SetAttributes(ctx, attribute.String(telemetry.AttrPool, h.pool))

	seeds, err := h.setupSeeds(ctx)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	plants, err := h.setupPlants(ctx, seeds)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, plant := range plants {
		plant.StartChurn(gctx, g, h.io.ThreadsPerPlant, h.newRNG, h.churnMetrics)
	}

	logger.Info("io mode running",
		logger.KeyPool, h.pool,
		"plants", len(plants),
		"threads", len(plants)*h.io.ThreadsPerPlant)

	return g.Wait()
}

// setupSeeds ensures the seed container and every seed dataset exist
// with their final snapshots. Already-finalized seeds are left alone.
func (h *Harness) setupSeeds(ctx context.Context) ([]*Seed, error) {
	if err := h.ops.CreateIdempotent(ctx, h.pool); err != nil {
		return nil, fmt.Errorf("creating pool dataset %s: %w", h.pool, err)
	}
	if err := h.ops.CreateIdempotent(ctx, h.seedRoot()); err != nil {
		return nil, fmt.Errorf("creating seed container: %w", err)
	}

	seeds := make([]*Seed, 0, h.io.SeedCount)
	for i := 0; i < h.io.SeedCount; i++ {
		seed := &Seed{
			ops:       h.ops,
			pool:      h.pool,
			id:        i,
			fileCount: h.io.FileCount,
			minSize:   h.io.FileMinSize,
			maxSize:   h.io.FileMaxSize,
			rng:       h.newRNG(),
		}
		if err := seed.Setup(ctx); err != nil {
			return nil, err
		}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}

// setupPlants destroys and recreates the plant container, then clones
// every plant from a uniformly chosen seed. The container teardown
// guarantees a run never mixes plants from a previous run.
func (h *Harness) setupPlants(ctx context.Context, seeds []*Seed) ([]*Plant, error) {
	if err := h.ops.Destroy(ctx, h.plantRoot(), true); err != nil {
		return nil, fmt.Errorf("destroying plant container: %w", err)
	}
	if err := h.ops.Create(ctx, h.plantRoot()); err != nil {
		return nil, fmt.Errorf("creating plant container: %w", err)
	}

	rng := h.newRNG()
	plants := make([]*Plant, 0, h.io.PlantCount)
	for i := 0; i < h.io.PlantCount; i++ {
		plant := &Plant{
			ops:  h.ops,
			pool: h.pool,
			id:   i,
			seed: seeds[rng.IntN(len(seeds))],
		}
		if err := plant.Setup(ctx); err != nil {
			return nil, err
		}
		plants = append(plants, plant)
	}
	return plants, nil
}

// RunBackup runs snapshot lifecycle cycles over the plant container until
// ctx is cancelled.
func (h *Harness) RunBackup(ctx context.Context) error {
	sched, err := lifecycle.New(h.ops, h.plantRoot(),
		lifecycle.WithWorkers(h.bak.Workers),
		lifecycle.WithMaxSnapshots(h.bak.MaxSnapshots),
		lifecycle.WithInterval(h.bak.Interval),
		lifecycle.WithMetrics(h.lifecycleMetrics),
	)
	if err != nil {
		return err
	}
	return sched.Run(ctx)
}
