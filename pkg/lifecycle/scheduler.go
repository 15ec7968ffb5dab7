// Package lifecycle drives the backup side of the harness: periodic
// snapshot cycles over every dataset under a root, retention trimming,
// and incremental transfer validation.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/grovelabs/grove/internal/logger"
	"github.com/grovelabs/grove/internal/telemetry"
	"github.com/grovelabs/grove/pkg/metrics"
	"github.com/grovelabs/grove/pkg/zfs"
)

const (
	// DefaultWorkers is the number of concurrent per-dataset workers in a
	// cycle.
	DefaultWorkers = 8

	// DefaultMaxSnapshots caps the retained snapshots per dataset. The
	// retention pass destroys the oldest snapshot until fewer than this
	// many remain.
	DefaultMaxSnapshots = 5

	// DefaultInterval is the pause between the end of one cycle and the
	// start of the next.
	DefaultInterval = 5 * time.Second

	// snapshotPrefix names the cycle snapshots; the suffix is the cycle's
	// unix timestamp, shared by every dataset in the cycle.
	snapshotPrefix = "backup-"
)

// Scheduler runs snapshot backup cycles over the child datasets of Root.
type Scheduler struct {
	ops  zfs.Ops
	root string

	workers      int
	maxSnapshots int
	interval     time.Duration

	metrics metrics.LifecycleMetrics

	// now is the cycle clock, overridable in tests.
	now func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the per-cycle worker count.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMaxSnapshots sets the retention cap.
func WithMaxSnapshots(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxSnapshots = n
		}
	}
}

// WithInterval sets the pause between cycles.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithMetrics attaches cycle metrics. A nil value disables recording.
func WithMetrics(m metrics.LifecycleMetrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New returns a Scheduler over the child datasets of root.
func New(ops zfs.Ops, root string, opts ...Option) (*Scheduler, error) {
	if err := zfs.ValidateDatasetName(root); err != nil {
		return nil, err
	}
	s := &Scheduler{
		ops:          ops,
		root:         root,
		workers:      DefaultWorkers,
		maxSnapshots: DefaultMaxSnapshots,
		interval:     DefaultInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run executes backup cycles until ctx is cancelled. A failed cycle is
// logged and the loop moves on to the next one; the datasets a failed
// cycle skipped are picked up again the next time around.
func (s *Scheduler) Run(ctx context.Context) error {
	for cycle := 0; ; cycle++ {
		if err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("backup cycle failed",
				logger.KeyCycle, cycle,
				logger.KeyError, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.interval):
		}
	}
}

// RunCycle performs one backup cycle: it lists the datasets under the
// root, derives a single timestamped snapshot name for the cycle, and
// processes every dataset on a pool of workers. The first worker error
// aborts the cycle.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "lifecycle.cycle")
	defer span.End()

	start := s.now()
	snapName := snapshotPrefix + fmt.Sprintf("%d", start.Unix())

	datasets, err := s.ops.ListChildDatasets(ctx, s.root)
	if err != nil {
		telemetry.RecordError(ctx, err)
		s.recordCycle(0, s.now().Sub(start), true)
		return fmt.Errorf("listing datasets under %s: %w", s.root, err)
	}
	telemetry.SetAttributes(ctx,
		attribute.String(telemetry.AttrSnapshot, snapName),
		attribute.Int(telemetry.AttrDatasets, len(datasets)))

	logger.Info("backup cycle starting",
		logger.KeySnapshot, snapName,
		"datasets", len(datasets))

	queue := make(chan string, len(datasets))
	for _, ds := range datasets {
		queue <- ds
	}
	close(queue)

	g, ctx := errgroup.WithContext(ctx)
	for worker := 0; worker < s.workers; worker++ {
		g.Go(func() error {
			for ds := range queue {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := s.processDataset(ctx, ds, snapName); err != nil {
					return fmt.Errorf("dataset %s: %w", ds, err)
				}
			}
			return nil
		})
	}

	err = g.Wait()
	elapsed := s.now().Sub(start)
	s.recordCycle(len(datasets), elapsed, err != nil)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	logger.Info("backup cycle complete",
		logger.KeySnapshot, snapName,
		"datasets", len(datasets),
		logger.KeyDuration, elapsed)
	return nil
}

// processDataset snapshots one dataset, trims its retained snapshots, and
// validates an incremental transfer when the dataset holds at least two.
func (s *Scheduler) processDataset(ctx context.Context, ds, snapName string) error {
	ctx, span := telemetry.StartSpan(ctx, "lifecycle.dataset")
	defer span.End()
	telemetry.SetAttributes(ctx,
		attribute.String(telemetry.AttrDataset, ds),
		attribute.String(telemetry.AttrSnapshot, snapName))

	if err := s.ops.Snapshot(ctx, ds, snapName, false); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordSnapshotCreated()
	}

	if err := s.trim(ctx, ds); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	snaps, err := s.ops.ListSnapshots(ctx, ds)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	if len(snaps) < 2 {
		// A freshly created dataset has no older snapshot to send from.
		if s.metrics != nil {
			s.metrics.RecordTransferSkipped()
		}
		logger.Debug("incremental transfer skipped",
			logger.KeyDataset, ds,
			"snapshots", len(snaps))
		return nil
	}

	oldSnap, newSnap := snaps[len(snaps)-2], snaps[len(snaps)-1]
	sendStart := s.now()
	if err := s.ops.ValidateIncrementalTransfer(ctx, ds, oldSnap, newSnap); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordTransferValidated(s.now().Sub(sendStart))
	}
	return nil
}

// trim destroys the oldest snapshot, one at a time, until the dataset
// retains fewer than the configured maximum. The snapshot list is
// re-read after every destroy so concurrent changes are observed.
func (s *Scheduler) trim(ctx context.Context, ds string) error {
	for {
		snaps, err := s.ops.ListSnapshots(ctx, ds)
		if err != nil {
			return err
		}
		if len(snaps) < s.maxSnapshots {
			return nil
		}
		oldest := snaps[0]
		logger.Debug("trimming snapshot",
			logger.KeyDataset, ds,
			logger.KeySnapshot, oldest)
		if err := s.ops.DestroySnapshot(ctx, ds, oldest); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.RecordSnapshotDestroyed()
		}
	}
}

func (s *Scheduler) recordCycle(datasets int, elapsed time.Duration, failed bool) {
	if s.metrics != nil {
		s.metrics.RecordCycle(datasets, elapsed, failed)
	}
}
