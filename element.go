package cachecore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
)

// ErrNotANumber is returned by Element.IncrDecr when the stored
// payload does not parse as a decimal unsigned integer. The original
// source comments "handle parse failure" but doesn't; this resolves
// that open question by surfacing the failure instead of silently
// treating the payload as zero (see DESIGN.md).
var ErrNotANumber = errors.New("cachecore: value is not a decimal number")

// Element is the value record stored in the cache: the opaque payload
// plus the metadata the memcached command surface needs.
//
// An Element is immutable once it is visible to a reader — every
// mutating command produces a new Element and swaps it into the map
// rather than editing one in place (spec.md §3's node-level
// invariant). CAS is assigned by the Cache façade on every successful
// mutating call; callers never choose it themselves.
//
// Expire and BlockedUntil are both milliseconds since the Unix epoch
// (see DESIGN.md open question #3 — the original source mixed
// seconds and milliseconds across two call sites; this module uses
// milliseconds uniformly).
type Element struct {
	Data         []byte
	Flags        uint32
	Expire       int64 // 0 means "no expiry"
	CAS          uint64
	Blocked      bool
	BlockedUntil int64
}

// Size reports the byte footprint counted toward a cache's memory
// capacity: the payload length. Flags/expire/cas bookkeeping is not
// counted, matching spec.md's memory_used definition.
func (e Element) Size() int64 { return int64(len(e.Data)) }

// IsExpired reports whether e's TTL has elapsed as of nowMs.
func (e Element) IsExpired(nowMs int64) bool {
	return e.Expire != 0 && e.Expire < nowMs
}

// IsBlocked reports whether e is a delayed-delete placeholder still
// within its block window as of nowMs.
func (e Element) IsBlocked(nowMs int64) bool {
	return e.Blocked && e.BlockedUntil > nowMs
}

// Append returns a new Element whose payload is e's data followed by
// other's. Flags and expiry are inherited from e; CAS is left at the
// zero value, since the Cache façade stamps a real token after the
// swap succeeds.
func (e Element) Append(other Element) Element {
	data := make([]byte, 0, len(e.Data)+len(other.Data))
	data = append(data, e.Data...)
	data = append(data, other.Data...)
	return Element{Data: data, Flags: e.Flags, Expire: e.Expire}
}

// Prepend mirrors Append with the operands reversed.
func (e Element) Prepend(other Element) Element {
	data := make([]byte, 0, len(e.Data)+len(other.Data))
	data = append(data, other.Data...)
	data = append(data, e.Data...)
	return Element{Data: data, Flags: e.Flags, Expire: e.Expire}
}

// IncrDecr parses e's payload as a decimal unsigned integer, adds
// delta (negative for decr), and clamps the result to 0 on underflow.
// It returns the pre-update value, the computed new value, and the
// Element to swap in; ErrNotANumber is returned instead of treating a
// garbled payload as zero (DESIGN.md open question #2).
func (e Element) IncrDecr(delta int64) (oldValue, newValue uint64, updated Element, err error) {
	oldValue, err = strconv.ParseUint(string(e.Data), 10, 64)
	if err != nil {
		return 0, 0, Element{}, ErrNotANumber
	}
	signed := int64(oldValue) + delta
	if signed < 0 {
		signed = 0
	}
	newValue = uint64(signed)
	updated = Element{
		Data:   []byte(strconv.FormatUint(newValue, 10)),
		Flags:  e.Flags,
		Expire: e.Expire,
	}
	return oldValue, newValue, updated, nil
}

// EncodeElement serializes key and e into the layout described in
// spec.md §6: big-endian, no padding. The CAS field is widened to 64
// bits rather than reproducing the 32-bit truncation the spec flags
// as likely unintentional (DESIGN.md open question #4):
//
//	int32 total_size; int64 expire; int32 key_len; bytes key;
//	int32 flags; int32 data_len; bytes data;
//	int64 cas; byte blocked; int64 blocked_until
func EncodeElement(key []byte, e Element) []byte {
	keyLen, dataLen := len(key), len(e.Data)
	total := 4 + 8 + 4 + keyLen + 4 + 4 + dataLen + 8 + 1 + 8
	buf := make([]byte, total)

	off := 0
	binary.BigEndian.PutUint32(buf[off:], uint32(total))
	off += 4
	binary.BigEndian.PutUint64(buf[off:], uint64(e.Expire))
	off += 8
	binary.BigEndian.PutUint32(buf[off:], uint32(keyLen))
	off += 4
	off += copy(buf[off:], key)
	binary.BigEndian.PutUint32(buf[off:], e.Flags)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], uint32(dataLen))
	off += 4
	off += copy(buf[off:], e.Data)
	binary.BigEndian.PutUint64(buf[off:], e.CAS)
	off += 8
	if e.Blocked {
		buf[off] = 1
	}
	off++
	binary.BigEndian.PutUint64(buf[off:], uint64(e.BlockedUntil))

	return buf
}

// DecodeElement parses the layout written by EncodeElement, returning
// the key and Element it described.
func DecodeElement(buf []byte) (key []byte, e Element, err error) {
	const minLen = 4 + 8 + 4 + 4 + 4 + 8 + 1 + 8
	if len(buf) < minLen {
		return nil, Element{}, fmt.Errorf("cachecore: buffer too short: %d bytes", len(buf))
	}

	total := int(binary.BigEndian.Uint32(buf))
	if total != len(buf) {
		return nil, Element{}, fmt.Errorf("cachecore: length mismatch: header says %d, got %d", total, len(buf))
	}

	off := 4
	expire := int64(binary.BigEndian.Uint64(buf[off:]))
	off += 8
	keyLen := int(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	if off+keyLen > len(buf) {
		return nil, Element{}, fmt.Errorf("cachecore: key_len %d overruns buffer", keyLen)
	}
	key = append([]byte(nil), buf[off:off+keyLen]...)
	off += keyLen

	flags := binary.BigEndian.Uint32(buf[off:])
	off += 4
	dataLen := int(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	if off+dataLen > len(buf) {
		return nil, Element{}, fmt.Errorf("cachecore: data_len %d overruns buffer", dataLen)
	}
	data := append([]byte(nil), buf[off:off+dataLen]...)
	off += dataLen

	cas := binary.BigEndian.Uint64(buf[off:])
	off += 8
	blocked := buf[off] != 0
	off++
	blockedUntil := int64(binary.BigEndian.Uint64(buf[off:]))

	e = Element{
		Data:         data,
		Flags:        flags,
		Expire:       expire,
		CAS:          cas,
		Blocked:      blocked,
		BlockedUntil: blockedUntil,
	}
	return key, e, nil
}
