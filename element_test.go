package cachecore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementAppendPrepend(t *testing.T) {
	base := Element{Data: []byte("hello"), Flags: 7, Expire: 100}
	suffix := Element{Data: []byte(" world")}
	prefix := Element{Data: []byte("say ")}

	appended := base.Append(suffix)
	assert.Equal(t, "hello world", string(appended.Data))
	assert.Equal(t, uint32(7), appended.Flags)
	assert.Equal(t, int64(100), appended.Expire)

	prepended := base.Prepend(prefix)
	assert.Equal(t, "say hello", string(prepended.Data))
}

func TestElementIncrDecr(t *testing.T) {
	e := Element{Data: []byte("10")}

	old, nv, updated, err := e.IncrDecr(5)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), old)
	assert.Equal(t, uint64(15), nv)
	assert.Equal(t, "15", string(updated.Data))

	_, nv, _, err = updated.IncrDecr(-100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nv, "decr underflow clamps to zero")
}

func TestElementIncrNotANumber(t *testing.T) {
	e := Element{Data: []byte("not-a-number")}
	_, _, _, err := e.IncrDecr(1)
	assert.ErrorIs(t, err, ErrNotANumber)
}

func TestElementExpiryAndBlocked(t *testing.T) {
	e := Element{Expire: 1000}
	assert.True(t, e.IsExpired(1001))
	assert.False(t, e.IsExpired(1000))
	assert.False(t, e.IsExpired(999))

	b := Element{Blocked: true, BlockedUntil: 2000}
	assert.True(t, b.IsBlocked(1500))
	assert.False(t, b.IsBlocked(2000))
	assert.False(t, Element{}.IsBlocked(1500))
}

func TestElementEncodeDecodeRoundTrip(t *testing.T) {
	key := []byte("mykey")
	e := Element{
		Data:         []byte("payload-bytes"),
		Flags:        42,
		Expire:       123456789,
		CAS:          9876543210,
		Blocked:      true,
		BlockedUntil: 555,
	}

	buf := EncodeElement(key, e)
	gotKey, gotE, err := DecodeElement(buf)
	require.NoError(t, err)
	assert.Equal(t, key, gotKey)
	assert.Equal(t, e, gotE)
}

func TestDecodeElementRejectsTruncatedBuffer(t *testing.T) {
	buf := EncodeElement([]byte("k"), Element{Data: []byte("v")})
	_, _, err := DecodeElement(buf[:len(buf)-1])
	assert.Error(t, err)
}
