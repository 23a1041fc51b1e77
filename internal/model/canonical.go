package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/gowebpki/jcs"
)

// Canonical returns the RFC 8785 (JCS) canonical JSON encoding of v.
//
// CRITICAL: this is the only encoding used for digests, for the engine's
// no-op comparison and for golden files. json.Marshal output differs
// (HTML escaping, key order of nested maps) and must not be compared
// byte-for-byte.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return out, nil
}

// CanonicalizeJSON canonicalizes already-encoded JSON.
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	return jcs.Transform(raw)
}

// Digest returns the sha256 hex digest of canonical bytes.
func Digest(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// Canonical encodes the bundle canonically.
func (b Bundle) Canonical() ([]byte, error) {
	return Canonical(b.Clone())
}

// SortedIDs returns the keys of m in ascending order.
func SortedIDs[V any](m map[ImmutableID]V) []ImmutableID {
	ids := make([]ImmutableID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
