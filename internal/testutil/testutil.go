// Package testutil provides testing utilities and helpers for bus tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/shmbus/internal/shared/paths"
)

var nameSeq atomic.Uint64

// Namespace returns an isolated namespace rooted in a per-test directory.
// Every object created through it disappears with the directory.
func Namespace(t *testing.T) paths.Namespace {
	t.Helper()
	return paths.New(t.TempDir(), "test_", 0o600)
}

// Name returns a name that is unique within the test binary
func Name(base string) string {
	return fmt.Sprintf("%s_%d", base, nameSeq.Add(1))
}

// Fill returns a payload of n copies of b
func Fill(b byte, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

// Uniform reports whether every byte of buf equals its first byte
func Uniform(buf []byte) bool {
	for _, b := range buf {
		if b != buf[0] {
			return false
		}
	}
	return true
}

// Entries lists the file names present in the namespace directory
func Entries(t *testing.T, ns paths.Namespace) []string {
	t.Helper()
	entries, err := os.ReadDir(ns.Dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// RequireNoTemporaries fails the test if an interrupted create left scratch
// files behind
func RequireNoTemporaries(t *testing.T, ns paths.Namespace) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(ns.Dir, paths.TempMarker+"*"))
	require.NoError(t, err)
	require.Empty(t, matches, "temporary objects left behind")
}
