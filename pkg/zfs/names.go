package zfs

import (
	"fmt"
	"strings"
)

// ValidateDatasetName rejects dataset names that would be ambiguous on the
// zfs command line. Dataset names are slash-separated hierarchies and must
// never contain the snapshot delimiter.
func ValidateDatasetName(name string) error {
	if name == "" {
		return fmt.Errorf("empty dataset name")
	}
	if strings.ContainsRune(name, '@') {
		return fmt.Errorf("invalid dataset name %q: must not contain '@'", name)
	}
	return nil
}

// ValidateSnapshotName rejects snapshot names containing the snapshot
// delimiter or a path separator.
func ValidateSnapshotName(name string) error {
	if name == "" {
		return fmt.Errorf("empty snapshot name")
	}
	if strings.ContainsAny(name, "@/") {
		return fmt.Errorf("invalid snapshot name %q: must not contain '@' or '/'", name)
	}
	return nil
}
