package cachecore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyEqualityAndHash(t *testing.T) {
	a := NewKeyString("foo")
	b := NewKeyString("foo")
	c := NewKeyString("bar")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.Equal(t, a, b, "Key is a plain comparable struct usable as a map key directly")
}

func TestNewKeyFromBytes(t *testing.T) {
	raw := []byte("from-bytes")
	k := NewKey(raw)
	assert.Equal(t, "from-bytes", k.String())
	assert.Equal(t, raw, k.Bytes())

	raw[0] = 'F'
	assert.Equal(t, "from-bytes", k.String(), "Key copies content, unaffected by later mutation of the source slice")
}
