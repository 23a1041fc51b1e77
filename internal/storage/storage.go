// Package storage defines the key/value contract shared by the local cache
// and the remote durable store.
//
// Drivers live in subpackages:
//   - memory: in-process map, with failure injection for tests
//   - sqlite: single-file cache (default local driver)
//   - badger: embedded LSM cache
//   - redis: networked cache
//   - fs: one file per key, atomic replace
//   - s3: S3-compatible bucket (default remote driver)
//
// Every driver returns errors instead of panicking and reports a missing key
// as ErrNotFound.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
)

// ErrNotFound is returned by Load for a key that does not exist.
var ErrNotFound = errors.New("storage: key not found")

// Store is a flat namespace of byte values.
//
// Thread-safety: implementations are safe for concurrent use.
type Store interface {
	// Save creates or replaces key.
	Save(ctx context.Context, key string, value []byte) error
	// Load returns the value of key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// List returns the keys matching a glob pattern in ascending order.
	// The pattern syntax is that of path.Match.
	List(ctx context.Context, pattern string) ([]string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the driver's resources.
	Close() error
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ValidateKey rejects keys no driver can store: empty keys, keys with path
// separators or parent references, and keys with control characters.
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return fmt.Errorf("storage: empty key")
	case strings.ContainsAny(key, `/\`):
		return fmt.Errorf("storage: key %q contains a path separator", key)
	case key == "." || key == "..":
		return fmt.Errorf("storage: invalid key %q", key)
	}
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("storage: key %q contains a control character", key)
		}
	}
	return nil
}

// ValidatePattern rejects malformed glob patterns.
func ValidatePattern(pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("storage: bad pattern %q: %w", pattern, err)
	}
	return nil
}

// Match reports whether key matches a validated pattern.
func Match(pattern, key string) bool {
	ok, _ := path.Match(pattern, key)
	return ok
}

// Prefix returns the literal prefix of pattern before its first
// metacharacter. Drivers use it to narrow scans before calling Match.
func Prefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// Filter returns the keys matching pattern, sorted and deduplicated.
func Filter(pattern string, keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if Match(pattern, k) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
