package zfs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		stderr string
		want   Kind
	}{
		{"cannot open 'tank/gone': dataset does not exist", KindNotFound},
		{"cannot create 'tank/dup': dataset already exists", KindAlreadyExists},
		{"cannot create 'tank/x': permission denied", KindOther},
		{"", KindOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classify(tc.stderr), "stderr %q", tc.stderr)
	}
}

func TestErrorPredicates(t *testing.T) {
	notFound := &Error{Op: "destroy", Target: "tank/gone", Kind: KindNotFound}
	exists := &Error{Op: "create", Target: "tank/dup", Kind: KindAlreadyExists}

	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsAlreadyExists(notFound))
	assert.True(t, IsAlreadyExists(exists))
	assert.False(t, IsNotFound(exists))

	// Predicates must see through wrapping.
	wrapped := fmt.Errorf("setting up seed: %w", notFound)
	assert.True(t, IsNotFound(wrapped))

	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Op:     "snapshot",
		Target: "tank/plant/0001@backup-1700000000",
		Kind:   KindOther,
		Stderr: "out of space",
	}
	assert.Equal(t, "zfs snapshot tank/plant/0001@backup-1700000000: out of space", err.Error())

	bare := &Error{Op: "create", Target: "tank/x", Err: errors.New("exit status 1")}
	assert.Contains(t, bare.Error(), "exit status 1")
}

func TestCLIArgv(t *testing.T) {
	plain := NewCLI("", "")
	assert.Equal(t, []string{"/sbin/zfs", "list", "tank"}, plain.argv("list", "tank"))

	elevated := NewCLI("/usr/sbin/zfs", "pfexec")
	assert.Equal(t,
		[]string{"pfexec", "/usr/sbin/zfs", "destroy", "-r", "tank/plant"},
		elevated.argv("destroy", "-r", "tank/plant"))
}
