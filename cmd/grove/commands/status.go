package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/grovelabs/grove/internal/cli/output"
	"github.com/grovelabs/grove/pkg/config"
	"github.com/grovelabs/grove/pkg/zfs"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show seed and plant dataset status",
	Long: `Display the current state of the harness datasets in the pool.

For every seed and plant dataset this lists the snapshot count and the
most recent snapshot name, so you can see at a glance whether seeds are
finalized and whether backup cycles are progressing.

Examples:
  # Show status as a table
  grove status

  # Output as JSON
  grove status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// DatasetStatus is the snapshot state of one harness dataset.
type DatasetStatus struct {
	Dataset   string `json:"dataset" yaml:"dataset"`
	Snapshots int    `json:"snapshots" yaml:"snapshots"`
	Latest    string `json:"latest,omitempty" yaml:"latest,omitempty"`
}

// PoolStatus is the harness-wide dataset listing.
type PoolStatus struct {
	Pool   string          `json:"pool" yaml:"pool"`
	Seeds  []DatasetStatus `json:"seeds" yaml:"seeds"`
	Plants []DatasetStatus `json:"plants" yaml:"plants"`
}

// Headers implements output.TableRenderer.
func (s *PoolStatus) Headers() []string {
	return []string{"DATASET", "SNAPSHOTS", "LATEST"}
}

// Rows implements output.TableRenderer.
func (s *PoolStatus) Rows() [][]string {
	rows := make([][]string, 0, len(s.Seeds)+len(s.Plants))
	for _, ds := range append(append([]DatasetStatus{}, s.Seeds...), s.Plants...) {
		rows = append(rows, []string{ds.Dataset, strconv.Itoa(ds.Snapshots), ds.Latest})
	}
	return rows
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	ops := newStorageOps(cfg)

	status := PoolStatus{Pool: cfg.Pool}
	if status.Seeds, err = collectStatus(ctx, ops, cfg.Pool+"/seed"); err != nil {
		return err
	}
	if status.Plants, err = collectStatus(ctx, ops, cfg.Pool+"/plant"); err != nil {
		return err
	}

	if len(status.Seeds) == 0 && len(status.Plants) == 0 && format == output.FormatTable {
		fmt.Printf("No harness datasets under pool %q. Run 'grove io' first.\n", cfg.Pool)
		return nil
	}

	return output.Print(os.Stdout, format, &status)
}

// collectStatus lists the children of a container dataset with their
// snapshot counts. A missing container just yields an empty list.
func collectStatus(ctx context.Context, ops zfs.Ops, root string) ([]DatasetStatus, error) {
	children, err := ops.ListChildDatasets(ctx, root)
	if err != nil {
		if zfs.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}

	statuses := make([]DatasetStatus, 0, len(children))
	for _, ds := range children {
		snaps, err := ops.ListSnapshots(ctx, ds)
		if err != nil {
			return nil, fmt.Errorf("listing snapshots of %s: %w", ds, err)
		}
		st := DatasetStatus{Dataset: ds, Snapshots: len(snaps)}
		if len(snaps) > 0 {
			st.Latest = snaps[len(snaps)-1]
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
