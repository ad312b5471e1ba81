package ordermap

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intVal int64

func (v intVal) Size() int64 { return int64(v) }

func ptr(v intVal) *intVal { return &v }

func TestPutGetReplace(t *testing.T) {
	m := New[string, intVal](FIFO, math.MaxInt64, math.MaxInt64)

	old := m.Put("a", ptr(1))
	require.Nil(t, old)

	v, ok := m.Get("a")
	require.True(t, ok)
	assert.EqualValues(t, 1, *v)

	old = m.Put("a", ptr(2))
	require.NotNil(t, old)
	assert.EqualValues(t, 1, *old)

	v, ok = m.Get("a")
	require.True(t, ok)
	assert.EqualValues(t, 2, *v)

	assert.EqualValues(t, 1, m.Size())
	assert.EqualValues(t, 2, m.MemoryUsed())
}

func TestPutIfAbsent(t *testing.T) {
	m := New[string, intVal](FIFO, math.MaxInt64, math.MaxInt64)

	old, inserted := m.PutIfAbsent("a", ptr(1))
	require.True(t, inserted)
	require.Nil(t, old)

	old, inserted = m.PutIfAbsent("a", ptr(2))
	require.False(t, inserted)
	require.NotNil(t, old)
	assert.EqualValues(t, 1, *old)

	v, _ := m.Get("a")
	assert.EqualValues(t, 1, *v)
}

func TestRemoveAndConditionalRemove(t *testing.T) {
	m := New[string, intVal](FIFO, math.MaxInt64, math.MaxInt64)

	cur := ptr(1)
	m.Put("a", cur)

	other := ptr(1)
	require.False(t, m.RemoveExpected("a", other), "must compare by identity, not value")
	require.True(t, m.RemoveExpected("a", cur))

	_, ok := m.Get("a")
	require.False(t, ok)
	assert.EqualValues(t, 0, m.Size())
	assert.EqualValues(t, 0, m.MemoryUsed())

	m.Put("b", ptr(5))
	old := m.Remove("b")
	require.NotNil(t, old)
	_, ok = m.Get("b")
	require.False(t, ok)
}

// TestRemoveReplaceOnNeverInsertedKeyDoesNotPlantNilNode guards against
// the Compute !loaded branch storing the zero-value (nil) node back
// into the index: a solo Remove/RemoveExpected/Replace/ReplaceExpected
// on a key that was never Put must be a true no-op, not a corrupt
// entry that panics on the next Get/Put.
func TestRemoveReplaceOnNeverInsertedKeyDoesNotPlantNilNode(t *testing.T) {
	m := New[string, intVal](FIFO, math.MaxInt64, math.MaxInt64)

	assert.Nil(t, m.Remove("ghost"))
	assert.False(t, m.RemoveExpected("ghost", ptr(1)))
	assert.Nil(t, m.Replace("ghost", ptr(1)))
	assert.False(t, m.ReplaceExpected("ghost", ptr(1), ptr(2)))

	_, ok := m.Get("ghost")
	assert.False(t, ok)
	assert.EqualValues(t, 0, m.Size())

	old, inserted := m.PutIfAbsent("ghost", ptr(9))
	require.True(t, inserted)
	assert.Nil(t, old)
	v, ok := m.Get("ghost")
	require.True(t, ok)
	assert.EqualValues(t, 9, *v)
}

func TestReplaceConditional(t *testing.T) {
	m := New[string, intVal](FIFO, math.MaxInt64, math.MaxInt64)
	cur := ptr(1)
	m.Put("a", cur)

	require.False(t, m.ReplaceExpected("a", ptr(1), ptr(2)))
	require.True(t, m.ReplaceExpected("a", cur, ptr(2)))

	v, _ := m.Get("a")
	assert.EqualValues(t, 2, *v)
}

func TestFIFOEviction(t *testing.T) {
	m := New[string, intVal](FIFO, 2, math.MaxInt64)
	m.Put("k1", ptr(1))
	m.Put("k2", ptr(1))
	m.Put("k3", ptr(1))

	_, ok := m.Get("k1")
	assert.False(t, ok)
	_, ok = m.Get("k2")
	assert.True(t, ok)
	_, ok = m.Get("k3")
	assert.True(t, ok)
	assert.EqualValues(t, 2, m.Size())
}

func TestLRUEviction(t *testing.T) {
	m := New[string, intVal](LRU, 2, math.MaxInt64)
	m.Put("k1", ptr(1))
	m.Put("k2", ptr(1))
	m.Get("k1") // k1 becomes most-recently-used
	m.Put("k3", ptr(1))

	_, ok := m.Get("k2")
	assert.False(t, ok, "k2 should be evicted, not k1")
	_, ok = m.Get("k1")
	assert.True(t, ok)
	_, ok = m.Get("k3")
	assert.True(t, ok)
}

func TestSecondChanceSavesAccessedEntry(t *testing.T) {
	m := New[string, intVal](SecondChance, 2, math.MaxInt64)
	m.Put("k1", ptr(1))
	m.Put("k2", ptr(1))
	m.Get("k1") // marks k1

	m.Put("k3", ptr(1)) // triggers an eviction pass

	_, ok := m.Get("k1")
	assert.True(t, ok, "marked entry should survive one eviction pass")
	assert.EqualValues(t, 2, m.Size())
}

func TestMemoryCapacity(t *testing.T) {
	m := New[string, intVal](FIFO, math.MaxInt64, 5)
	m.Put("a", ptr(3))
	m.Put("b", ptr(3))

	assert.LessOrEqual(t, m.MemoryUsed(), int64(5))
	assert.LessOrEqual(t, m.Size(), int64(1))
}

func TestConcurrentPutGetRemove(t *testing.T) {
	m := New[string, intVal](LRU, 50, math.MaxInt64)
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := fmt.Sprintf("k%d", i%20)
			m.Put(k, ptr(intVal(i%7+1)))
			m.Get(k)
			if i%5 == 0 {
				m.Remove(k)
			}
		}(i)
	}
	wg.Wait()

	assert.GreaterOrEqual(t, m.Size(), int64(0))
	assert.LessOrEqual(t, m.Size(), int64(50))
}

func TestClose(t *testing.T) {
	m := New[string, intVal](FIFO, math.MaxInt64, math.MaxInt64)
	m.Put("a", ptr(1))
	m.Put("b", ptr(2))
	m.Close()

	assert.EqualValues(t, 0, m.Size())
	assert.EqualValues(t, 0, m.MemoryUsed())
	_, ok := m.Get("a")
	assert.False(t, ok)
}
