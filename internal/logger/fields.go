package logger

// Standard field keys for structured logging. Used consistently across the
// harness so long runs can be filtered by dataset, snapshot, or cycle.
const (
	KeyRunID    = "run_id"   // Unique ID of this harness invocation
	KeyMode     = "mode"     // Harness mode: io, backup
	KeyPool     = "pool"     // ZFS pool the run targets
	KeyDataset  = "dataset"  // Dataset name (pool/seed/0001, pool/plant/0042, ...)
	KeySnapshot = "snapshot" // Fully qualified snapshot name (dataset@name)
	KeySeed     = "seed"     // Seed ID
	KeyPlant    = "plant"    // Plant ID
	KeyCycle    = "cycle"    // Backup cycle snapshot name
	KeyWorker   = "worker"   // Worker index within a cycle
	KeyPath     = "path"     // Filesystem path
	KeyArgv     = "argv"     // Executed command line
	KeyError    = "error"    // Error value
	KeyDuration = "duration" // Elapsed time of an operation
	KeyFiles    = "files"    // File count
	KeyOps      = "ops"      // I/O operation count
)
