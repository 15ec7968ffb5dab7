package metrics

import "time"

// ChurnMetrics observes the file churn engine.
//
// Pass nil to disable collection with zero overhead.
type ChurnMetrics interface {
	// RecordSweep records one full randomized pass over a plant's files.
	RecordSweep(files int, duration time.Duration)

	// RecordOps records the read and write operations applied to one file.
	RecordOps(reads, writes uint64)

	// RecordFileError counts a per-file failure that was logged and
	// skipped.
	RecordFileError()
}

// LifecycleMetrics observes the snapshot lifecycle scheduler.
//
// Pass nil to disable collection with zero overhead.
type LifecycleMetrics interface {
	// RecordCycle records a completed backup cycle and whether it failed.
	RecordCycle(datasets int, duration time.Duration, failed bool)

	// RecordSnapshotCreated counts a cycle snapshot creation.
	RecordSnapshotCreated()

	// RecordSnapshotDestroyed counts a retention-trim destroy.
	RecordSnapshotDestroyed()

	// RecordTransferValidated records one incremental transfer validation.
	RecordTransferValidated(duration time.Duration)

	// RecordTransferSkipped counts a dataset skipped for having fewer
	// than two snapshots.
	RecordTransferSkipped()
}
