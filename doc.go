// Package cachecore implements a concurrent, in-memory cache core
// exposing the memcached command surface (set/add/replace/append/
// prepend/cas/incr/decr/delete/flush_all) over a generic intrusive-chain
// hash map with pluggable eviction policies.
//
// The wire protocol itself — parsing text or binary memcached commands
// off a socket — is out of scope; EncodeElement/DecodeElement only
// cover the on-disk/on-wire layout of a single value record.
package cachecore
