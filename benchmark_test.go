package cachecore

import (
	"strconv"
	"testing"
)

/*
BenchmarkSet measures the raw write-path cost: CAS counter increment,
Element construction, and the underlying ordermap insert/evict pass,
with the same key repeated so the map never grows.
*/
func BenchmarkSet(b *testing.B) {
	c := New(WithCapacity(1 << 20))
	defer c.Close()
	k := NewKeyString("key")
	v := Element{Data: []byte("value")}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set(k, v)
	}
}

// BenchmarkSetUniqueKeys exercises map growth and eviction pressure
// under a small fixed capacity instead of a single hot key.
func BenchmarkSetUniqueKeys(b *testing.B) {
	c := New(WithPolicy(LRU), WithCapacity(1024), WithMemoryCapacity(1<<20))
	defer c.Close()
	v := Element{Data: []byte("value")}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set(NewKeyString("key-"+strconv.Itoa(i)), v)
	}
}

func BenchmarkGetHit(b *testing.B) {
	c := New()
	defer c.Close()
	k := NewKeyString("key")
	c.Set(k, Element{Data: []byte("value")})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(k)
	}
}

func BenchmarkIncr(b *testing.B) {
	c := New()
	defer c.Close()
	k := NewKeyString("counter")
	c.Set(k, Element{Data: []byte("0")})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Incr(k, 1)
	}
}
