// Package zfstest provides an in-memory zfs.Ops implementation for tests.
//
// The fake models datasets, creation-ordered snapshots, and mountpoints
// backed by temp directories, and it counts every operation so tests can
// assert on idempotence. Snapshots do not preserve content: Clone copies
// the origin's current tree, which is all the harness tests need.
package zfstest

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/grovelabs/grove/pkg/zfs"
)

type dataset struct {
	snapshots []string // creation order, oldest first
	mount     string
}

// Fake is an in-memory zfs.Ops.
type Fake struct {
	mu       sync.Mutex
	root     string
	datasets map[string]*dataset

	// Calls counts invocations by operation name (create, destroy,
	// snapshot, destroy-snapshot, clone, send, ...). Counted whether or
	// not the operation succeeds.
	Calls map[string]int
}

// New returns a Fake whose mountpoints live under root.
func New(root string) *Fake {
	return &Fake{
		root:     root,
		datasets: make(map[string]*dataset),
		Calls:    make(map[string]int),
	}
}

func (f *Fake) count(op string) {
	f.Calls[op]++
}

// CallCount returns how many times op was invoked.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[op]
}

// ResetCalls clears the operation counters.
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = make(map[string]int)
}

// Datasets returns the sorted names of all existing datasets.
func (f *Fake) Datasets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.datasets))
	for name := range f.datasets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Snapshots returns the creation-ordered snapshot names of a dataset.
func (f *Fake) Snapshots(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ds, ok := f.datasets[name]
	if !ok {
		return nil
	}
	return slices.Clone(ds.snapshots)
}

// mountFor derives a mountpoint directory for a dataset.
func (f *Fake) mountFor(name string) string {
	return filepath.Join(f.root, filepath.FromSlash(name))
}

// createLocked creates a dataset and its mountpoint, auto-creating
// missing parents (tests never care about intermediate datasets).
func (f *Fake) createLocked(name string) (*dataset, error) {
	mount := f.mountFor(name)
	if err := os.MkdirAll(mount, 0o755); err != nil {
		return nil, err
	}
	ds := &dataset{mount: mount}
	f.datasets[name] = ds

	for parent := parentOf(name); parent != ""; parent = parentOf(parent) {
		if _, ok := f.datasets[parent]; !ok {
			f.datasets[parent] = &dataset{mount: f.mountFor(parent)}
		}
	}
	return ds, nil
}

func parentOf(name string) string {
	idx := strings.LastIndex(name, "/")
	if idx < 0 {
		return ""
	}
	return name[:idx]
}

func (f *Fake) Create(ctx context.Context, name string) error {
	if err := zfs.ValidateDatasetName(name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("create")

	if _, ok := f.datasets[name]; ok {
		return &zfs.Error{Op: "create", Target: name, Kind: zfs.KindAlreadyExists,
			Stderr: fmt.Sprintf("cannot create %q: dataset already exists", name)}
	}
	_, err := f.createLocked(name)
	return err
}

func (f *Fake) CreateIdempotent(ctx context.Context, name string) error {
	err := f.Create(ctx, name)
	if zfs.IsAlreadyExists(err) {
		return nil
	}
	return err
}

func (f *Fake) Destroy(ctx context.Context, name string, recursive bool) error {
	if err := zfs.ValidateDatasetName(name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("destroy")

	ds, ok := f.datasets[name]
	if !ok {
		// Missing dataset is success per the Ops contract.
		return nil
	}

	prefix := name + "/"
	if !recursive {
		for other := range f.datasets {
			if strings.HasPrefix(other, prefix) {
				return &zfs.Error{Op: "destroy", Target: name, Kind: zfs.KindOther,
					Stderr: fmt.Sprintf("cannot destroy %q: filesystem has children", name)}
			}
		}
	}

	for other := range f.datasets {
		if strings.HasPrefix(other, prefix) {
			delete(f.datasets, other)
		}
	}
	delete(f.datasets, name)
	return os.RemoveAll(ds.mount)
}

func (f *Fake) Snapshot(ctx context.Context, dsName, snapName string, recursive bool) error {
	if err := zfs.ValidateDatasetName(dsName); err != nil {
		return err
	}
	if err := zfs.ValidateSnapshotName(snapName); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("snapshot")

	ds, ok := f.datasets[dsName]
	if !ok {
		return &zfs.Error{Op: "snapshot", Target: dsName + "@" + snapName, Kind: zfs.KindNotFound,
			Stderr: fmt.Sprintf("cannot open %q: dataset does not exist", dsName)}
	}
	if slices.Contains(ds.snapshots, snapName) {
		return &zfs.Error{Op: "snapshot", Target: dsName + "@" + snapName, Kind: zfs.KindAlreadyExists,
			Stderr: "snapshot already exists"}
	}
	ds.snapshots = append(ds.snapshots, snapName)
	return nil
}

func (f *Fake) DestroySnapshot(ctx context.Context, dsName, snapName string) error {
	if err := zfs.ValidateDatasetName(dsName); err != nil {
		return err
	}
	if err := zfs.ValidateSnapshotName(snapName); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("destroy-snapshot")

	ds, ok := f.datasets[dsName]
	if !ok {
		return nil
	}
	idx := slices.Index(ds.snapshots, snapName)
	if idx < 0 {
		return nil
	}
	ds.snapshots = slices.Delete(ds.snapshots, idx, idx+1)
	return nil
}

func (f *Fake) Clone(ctx context.Context, dsName, snapName, target string) error {
	if err := zfs.ValidateDatasetName(dsName); err != nil {
		return err
	}
	if err := zfs.ValidateSnapshotName(snapName); err != nil {
		return err
	}
	if err := zfs.ValidateDatasetName(target); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("clone")

	origin, ok := f.datasets[dsName]
	if !ok || !slices.Contains(origin.snapshots, snapName) {
		return &zfs.Error{Op: "clone", Target: target, Kind: zfs.KindNotFound,
			Stderr: fmt.Sprintf("cannot open %q@%q: dataset does not exist", dsName, snapName)}
	}
	if _, ok := f.datasets[target]; ok {
		return &zfs.Error{Op: "clone", Target: target, Kind: zfs.KindAlreadyExists,
			Stderr: "dataset already exists"}
	}

	clone, err := f.createLocked(target)
	if err != nil {
		return err
	}
	return copyTree(origin.mount, clone.mount)
}

func (f *Fake) GetProperty(ctx context.Context, name, key string) (string, error) {
	if err := zfs.ValidateDatasetName(name); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("get")

	ds, ok := f.datasets[name]
	if !ok {
		return "", &zfs.Error{Op: "get", Target: name, Kind: zfs.KindNotFound,
			Stderr: fmt.Sprintf("cannot open %q: dataset does not exist", name)}
	}
	if key != "mountpoint" {
		return "", &zfs.Error{Op: "get", Target: name, Kind: zfs.KindOther,
			Stderr: fmt.Sprintf("bad property %q", key)}
	}
	return ds.mount, nil
}

func (f *Fake) SnapshotExists(ctx context.Context, dsName, snapName string) (bool, error) {
	if err := zfs.ValidateDatasetName(dsName); err != nil {
		return false, err
	}
	if err := zfs.ValidateSnapshotName(snapName); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("list")

	ds, ok := f.datasets[dsName]
	if !ok {
		return false, nil
	}
	return slices.Contains(ds.snapshots, snapName), nil
}

func (f *Fake) ListChildDatasets(ctx context.Context, root string) ([]string, error) {
	if err := zfs.ValidateDatasetName(root); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("list")

	if _, ok := f.datasets[root]; !ok {
		return nil, &zfs.Error{Op: "list", Target: root, Kind: zfs.KindNotFound,
			Stderr: fmt.Sprintf("cannot open %q: dataset does not exist", root)}
	}

	prefix := root + "/"
	var children []string
	for name := range f.datasets {
		if strings.HasPrefix(name, prefix) && !strings.Contains(name[len(prefix):], "/") {
			children = append(children, name)
		}
	}
	slices.Sort(children)
	return children, nil
}

func (f *Fake) ListSnapshots(ctx context.Context, dsName string) ([]string, error) {
	if err := zfs.ValidateDatasetName(dsName); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("list")

	ds, ok := f.datasets[dsName]
	if !ok {
		return nil, &zfs.Error{Op: "list", Target: dsName, Kind: zfs.KindNotFound,
			Stderr: fmt.Sprintf("cannot open %q: dataset does not exist", dsName)}
	}
	return slices.Clone(ds.snapshots), nil
}

func (f *Fake) ValidateIncrementalTransfer(ctx context.Context, dsName, oldSnap, newSnap string) error {
	if err := zfs.ValidateDatasetName(dsName); err != nil {
		return err
	}
	if err := zfs.ValidateSnapshotName(oldSnap); err != nil {
		return err
	}
	if err := zfs.ValidateSnapshotName(newSnap); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("send")

	ds, ok := f.datasets[dsName]
	if !ok || !slices.Contains(ds.snapshots, oldSnap) || !slices.Contains(ds.snapshots, newSnap) {
		return &zfs.Error{Op: "send", Target: dsName + "@" + newSnap, Kind: zfs.KindNotFound,
			Stderr: "dataset does not exist"}
	}
	return nil
}

// copyTree copies a directory tree. Used by Clone in place of real
// copy-on-write.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}

var _ zfs.Ops = (*Fake)(nil)
