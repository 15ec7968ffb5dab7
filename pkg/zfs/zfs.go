// Package zfs wraps the ZFS command line tools behind a narrow storage
// interface.
//
// The harness treats the storage engine as an opaque collaborator: every
// operation here is a synchronous call-and-wait subprocess invocation with
// an empty environment and (optionally) a privilege elevation prefix.
// Failures are classified into structured kinds (see Error) so callers can
// implement idempotent create/destroy without parsing error text.
//
// All dataset and snapshot names are validated before any subprocess is
// spawned; names containing the '@' snapshot delimiter (or '/' in snapshot
// names) are rejected outright.
package zfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/grovelabs/grove/internal/logger"
)

// Ops is the storage engine surface consumed by the harness.
//
// Implementations must be safe for concurrent use: the lifecycle scheduler
// invokes these methods from multiple workers at once.
type Ops interface {
	// Create creates a dataset. It fails if the dataset already exists.
	Create(ctx context.Context, name string) error

	// CreateIdempotent creates a dataset, treating "already exists" as
	// success.
	CreateIdempotent(ctx context.Context, name string) error

	// Destroy destroys a dataset, recursively when requested. A missing
	// dataset is treated as success.
	Destroy(ctx context.Context, name string, recursive bool) error

	// Snapshot creates dataset@name, recursively when requested.
	Snapshot(ctx context.Context, dataset, name string, recursive bool) error

	// DestroySnapshot destroys dataset@name. A missing snapshot is treated
	// as success.
	DestroySnapshot(ctx context.Context, dataset, name string) error

	// Clone creates a writable dataset target from dataset@snapName.
	Clone(ctx context.Context, dataset, snapName, target string) error

	// GetProperty reads a single property value of a dataset.
	GetProperty(ctx context.Context, name, key string) (string, error)

	// SnapshotExists reports whether dataset@name exists.
	SnapshotExists(ctx context.Context, dataset, name string) (bool, error)

	// ListChildDatasets lists the immediate child datasets of root, one
	// level deep, excluding root itself.
	ListChildDatasets(ctx context.Context, root string) ([]string, error)

	// ListSnapshots lists the snapshot names of a dataset ordered
	// oldest to newest by creation time. The ordering comes from the
	// engine and is never recomputed locally.
	ListSnapshots(ctx context.Context, dataset string) ([]string, error)

	// ValidateIncrementalTransfer produces the incremental stream between
	// dataset@oldSnap and dataset@newSnap and discards it. It is a
	// correctness and performance probe, not a persisted backup.
	ValidateIncrementalTransfer(ctx context.Context, dataset, oldSnap, newSnap string) error
}

// CLI is the Ops implementation backed by the zfs command line tool.
type CLI struct {
	// Command is the path of the zfs binary. Defaults to /sbin/zfs.
	Command string

	// Elevate is a privilege elevation command prefixed to every
	// invocation (pfexec, sudo, doas). Empty runs zfs directly.
	Elevate string
}

// NewCLI returns a CLI adapter with the given binary path and elevation
// command. Empty arguments select the defaults.
func NewCLI(command, elevate string) *CLI {
	if command == "" {
		command = "/sbin/zfs"
	}
	return &CLI{Command: command, Elevate: elevate}
}

// argv assembles the full command line for a zfs invocation.
func (c *CLI) argv(args ...string) []string {
	cmd := c.Command
	if cmd == "" {
		cmd = "/sbin/zfs"
	}
	if c.Elevate != "" {
		return append([]string{c.Elevate, cmd}, args...)
	}
	return append([]string{cmd}, args...)
}

// run executes a zfs subcommand and returns its stdout. The subprocess
// runs with an empty environment. On failure the stderr text is classified
// into an *Error.
func (c *CLI) run(ctx context.Context, op, target string, args ...string) (string, error) {
	argv := c.argv(args...)

	logger.Info("exec", logger.KeyArgv, strings.Join(argv, " "))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = []string{}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		zerr := &Error{
			Op:     op,
			Target: target,
			Kind:   classify(stderr.String()),
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
		return "", zerr
	}

	return stdout.String(), nil
}

func (c *CLI) Create(ctx context.Context, name string) error {
	if err := ValidateDatasetName(name); err != nil {
		return err
	}
	_, err := c.run(ctx, "create", name, "create", name)
	if err != nil {
		logger.Error("zfs create failed", logger.KeyDataset, name, logger.KeyError, err)
	}
	return err
}

func (c *CLI) CreateIdempotent(ctx context.Context, name string) error {
	err := c.Create(ctx, name)
	if IsAlreadyExists(err) {
		return nil
	}
	return err
}

func (c *CLI) Destroy(ctx context.Context, name string, recursive bool) error {
	if err := ValidateDatasetName(name); err != nil {
		return err
	}
	args := []string{"destroy"}
	if recursive {
		args = append(args, "-r")
	}
	args = append(args, name)
	_, err := c.run(ctx, "destroy", name, args...)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		logger.Error("zfs destroy failed", logger.KeyDataset, name, logger.KeyError, err)
	}
	return err
}

func (c *CLI) Snapshot(ctx context.Context, dataset, name string, recursive bool) error {
	if err := ValidateDatasetName(dataset); err != nil {
		return err
	}
	if err := ValidateSnapshotName(name); err != nil {
		return err
	}
	full := dataset + "@" + name
	args := []string{"snapshot"}
	if recursive {
		args = append(args, "-r")
	}
	args = append(args, full)
	_, err := c.run(ctx, "snapshot", full, args...)
	if err != nil {
		logger.Error("zfs snapshot failed", logger.KeySnapshot, full, logger.KeyError, err)
	}
	return err
}

func (c *CLI) DestroySnapshot(ctx context.Context, dataset, name string) error {
	if err := ValidateDatasetName(dataset); err != nil {
		return err
	}
	if err := ValidateSnapshotName(name); err != nil {
		return err
	}
	full := dataset + "@" + name
	_, err := c.run(ctx, "destroy", full, "destroy", full)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		logger.Error("zfs destroy snapshot failed", logger.KeySnapshot, full, logger.KeyError, err)
	}
	return err
}

func (c *CLI) Clone(ctx context.Context, dataset, snapName, target string) error {
	if err := ValidateDatasetName(dataset); err != nil {
		return err
	}
	if err := ValidateSnapshotName(snapName); err != nil {
		return err
	}
	if err := ValidateDatasetName(target); err != nil {
		return err
	}
	full := dataset + "@" + snapName
	_, err := c.run(ctx, "clone", target, "clone", full, target)
	if err != nil {
		logger.Error("zfs clone failed", logger.KeySnapshot, full, logger.KeyDataset, target, logger.KeyError, err)
	}
	return err
}

func (c *CLI) GetProperty(ctx context.Context, name, key string) (string, error) {
	if err := ValidateDatasetName(name); err != nil {
		return "", err
	}
	out, err := c.run(ctx, "get", name, "get", "-H", "-o", "value", key, name)
	if err != nil {
		logger.Error("zfs get failed", logger.KeyDataset, name, "property", key, logger.KeyError, err)
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

func (c *CLI) SnapshotExists(ctx context.Context, dataset, name string) (bool, error) {
	if err := ValidateDatasetName(dataset); err != nil {
		return false, err
	}
	if err := ValidateSnapshotName(name); err != nil {
		return false, err
	}
	full := dataset + "@" + name
	_, err := c.run(ctx, "list", full, "list", "-Ho", "name", full)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		logger.Error("zfs list failed", logger.KeySnapshot, full, logger.KeyError, err)
		return false, err
	}
	return true, nil
}

func (c *CLI) ListChildDatasets(ctx context.Context, root string) ([]string, error) {
	if err := ValidateDatasetName(root); err != nil {
		return nil, err
	}
	out, err := c.run(ctx, "list", root,
		"list", "-t", "filesystem", "-d", "1", "-Ho", "name", root)
	if err != nil {
		logger.Error("zfs list failed", logger.KeyDataset, root, logger.KeyError, err)
		return nil, err
	}

	var children []string
	for line := range strings.Lines(out) {
		name := strings.TrimSpace(line)
		if name == "" || name == root {
			continue
		}
		children = append(children, name)
	}
	return children, nil
}

func (c *CLI) ListSnapshots(ctx context.Context, dataset string) ([]string, error) {
	if err := ValidateDatasetName(dataset); err != nil {
		return nil, err
	}
	out, err := c.run(ctx, "list", dataset,
		"list", "-t", "snapshot", "-d", "1", "-Ho", "name", "-s", "creation", dataset)
	if err != nil {
		logger.Error("zfs list snapshots failed", logger.KeyDataset, dataset, logger.KeyError, err)
		return nil, err
	}

	var snaps []string
	for line := range strings.Lines(out) {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		_, snap, ok := strings.Cut(name, "@")
		if !ok {
			return nil, fmt.Errorf("unexpected snapshot list entry %q for %s", name, dataset)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (c *CLI) ValidateIncrementalTransfer(ctx context.Context, dataset, oldSnap, newSnap string) error {
	if err := ValidateDatasetName(dataset); err != nil {
		return err
	}
	if err := ValidateSnapshotName(oldSnap); err != nil {
		return err
	}
	if err := ValidateSnapshotName(newSnap); err != nil {
		return err
	}

	fullOld := dataset + "@" + oldSnap
	fullNew := dataset + "@" + newSnap

	argv := c.argv("send", "-i", fullOld, fullNew)
	logger.Info("exec", logger.KeyArgv, strings.Join(argv, " "))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = []string{}

	// The stream itself is the probe; discard it as it is produced.
	cmd.Stdout = io.Discard

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		zerr := &Error{
			Op:     "send",
			Target: fullNew,
			Kind:   classify(stderr.String()),
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
		logger.Error("zfs send failed", logger.KeySnapshot, fullNew, logger.KeyError, zerr)
		return zerr
	}

	return nil
}

var _ Ops = (*CLI)(nil)
