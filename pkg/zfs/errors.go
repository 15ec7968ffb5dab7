package zfs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a storage engine failure so that callers can implement
// idempotent behavior without inspecting the error text themselves.
type Kind int

const (
	// KindOther is any failure that does not fall into a known category.
	KindOther Kind = iota

	// KindNotFound means the target dataset or snapshot does not exist.
	KindNotFound

	// KindAlreadyExists means the target dataset or snapshot already exists.
	KindAlreadyExists
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	default:
		return "other"
	}
}

// Error is a failure reported by the ZFS command line tools.
//
// The stderr text of the failed invocation is preserved verbatim for
// logging, but callers should branch on Kind (via IsNotFound and
// IsAlreadyExists) rather than on the message.
type Error struct {
	// Op is the zfs subcommand that failed (create, destroy, snapshot, ...).
	Op string

	// Target is the dataset or snapshot the operation was applied to.
	Target string

	// Kind is the classified failure category.
	Kind Kind

	// Stderr is the trimmed stderr output of the failed command.
	Stderr string

	// Err is the underlying process error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("zfs %s %s: %s", e.Op, e.Target, e.Stderr)
	}
	if e.Err != nil {
		return fmt.Sprintf("zfs %s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("zfs %s %s failed", e.Op, e.Target)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a storage engine "does not exist"
// failure.
func IsNotFound(err error) bool {
	var zerr *Error
	return errors.As(err, &zerr) && zerr.Kind == KindNotFound
}

// IsAlreadyExists reports whether err is a storage engine "already exists"
// failure.
func IsAlreadyExists(err error) bool {
	var zerr *Error
	return errors.As(err, &zerr) && zerr.Kind == KindAlreadyExists
}

// classify maps the stderr text of a failed zfs invocation to a Kind.
// This is the only place where the engine's error text is inspected; the
// zfs tools report idempotence-relevant conditions only through their
// messages.
func classify(stderr string) Kind {
	switch {
	case strings.Contains(stderr, "does not exist"):
		return KindNotFound
	case strings.Contains(stderr, "already exists"):
		return KindAlreadyExists
	default:
		return KindOther
	}
}
