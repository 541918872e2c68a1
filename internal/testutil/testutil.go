// Package testutil provides small filesystem fixture helpers shared by the
// package tests, in the teacher's direct t.TempDir()-plus-createFile style
// (no mocking framework).
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path (and any missing parent directories) with the
// given content.
func WriteFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// WriteFileSize creates path with size bytes of zero-filled content. Useful
// for walker/size-bucket tests that only care about sizes, not bytes.
func WriteFileSize(t *testing.T, path string, size int64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

// WriteRandom creates path with size bytes of pseudo-random content derived
// from seed, so two different seeds never collide for reasonably small
// sizes but the same seed always reproduces the same bytes.
func WriteRandom(t *testing.T, path string, size int64, seed byte) {
	t.Helper()
	content := make([]byte, size)
	state := seed
	for i := range content {
		state = state*167 + 1
		content[i] = state
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
}

// Symlink creates a symlink at linkPath pointing to target, failing the
// test on error.
func Symlink(t *testing.T, target, linkPath string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, linkPath); err != nil {
		t.Fatal(err)
	}
}
