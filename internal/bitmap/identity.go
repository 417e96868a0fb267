// Package bitmap defines the decoded image model shared by the cache,
// the decoders and the preload pipeline.
package bitmap

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Identity is a stable key derived from a file's location (not its content).
// Two files with the same name in different folders never share an Identity.
type Identity string

// NewIdentity builds the identity for the file at path.
func NewIdentity(path string) (Identity, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	abs = filepath.Clean(abs)
	if runtime.GOOS == "windows" {
		abs = strings.ToLower(abs)
	}

	return Identity(abs), nil
}

// MustIdentity is like NewIdentity but panics on error. Intended for tests
// and static paths.
func MustIdentity(path string) Identity {
	id, err := NewIdentity(path)
	if err != nil {
		panic(err)
	}
	return id
}

// Path returns the path hint the identity was derived from.
func (id Identity) Path() string {
	return string(id)
}

// Ext returns the lower-cased extension of the path hint.
func (id Identity) Ext() string {
	return strings.ToLower(filepath.Ext(string(id)))
}

// Short returns a short hash suitable for log attributes.
func (id Identity) Short() string {
	hash := sha256.Sum256([]byte(id))
	return fmt.Sprintf("%x", hash)[:8]
}
