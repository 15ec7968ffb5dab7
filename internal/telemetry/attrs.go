package telemetry

// Span attribute keys for harness operations.
const (
	AttrPool     = "grove.pool"
	AttrDataset  = "grove.dataset"
	AttrSnapshot = "grove.snapshot"
	AttrCycle    = "grove.cycle"
	AttrWorker   = "grove.worker"
	AttrDatasets = "grove.datasets"
)
