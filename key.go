package cachecore

import "github.com/cespare/xxhash/v2"

// Key is an immutable, opaque binary key with a precomputed hash.
// Equality and hashing are by byte content. The content is stored as
// a Go string, so a Key is cheap to copy (strings are immutable, the
// backing array is shared) and directly comparable with ==, which is
// what lets it serve as the generic key type for
// internal/ordermap.Map without any wrapper hashing logic there.
type Key struct {
	raw  string
	hash uint64
}

// NewKey builds a Key from a byte slice. The bytes are copied into the
// Key's internal string, so the caller's slice may be reused or
// mutated afterward.
func NewKey(b []byte) Key {
	return NewKeyString(string(b))
}

// NewKeyString builds a Key directly from a string, avoiding a copy
// when the caller already holds the key as a string.
func NewKeyString(s string) Key {
	return Key{raw: s, hash: xxhash.Sum64String(s)}
}

// Bytes returns the key's content as a new byte slice.
func (k Key) Bytes() []byte { return []byte(k.raw) }

// Hash returns the key's precomputed 64-bit hash.
func (k Key) Hash() uint64 { return k.hash }

// String returns the key's content unchanged, including any non-UTF-8
// bytes. Logs use it, and the delayed-delete queue stores it and
// rebuilds the Key from it with NewKeyString.
func (k Key) String() string { return k.raw }

// Equal reports whether two keys have identical byte content.
func (k Key) Equal(other Key) bool { return k.raw == other.raw }
