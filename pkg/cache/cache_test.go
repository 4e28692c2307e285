package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_InsertAndRetrieve(t *testing.T) {
	c := NewCache(10)
	require.NoError(t, c.Insert("A", "valueA", 1))

	value, ok := c.Retrieve("A")
	require.True(t, ok)
	assert.Equal(t, "valueA", value)

	_, ok = c.Retrieve("missing")
	assert.False(t, ok)

	assert.Equal(t, 1, c.GetWeight())
	assert.Equal(t, 10, c.GetBudget())
	assert.Equal(t, 1, c.Len())
}

func TestCache_DuplicateRejected(t *testing.T) {
	c := NewCache(2)
	require.NoError(t, c.Insert("dupe", "first", 1))
	assert.Equal(t, ErrKeyExists, c.Insert("dupe", "second", 1))

	value, ok := c.Retrieve("dupe")
	require.True(t, ok)
	assert.Equal(t, "first", value)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2)
	c.SetVerbose(true)

	require.NoError(t, c.Insert("evicted", "valueEvicted", 1))
	require.NoError(t, c.Insert("A", "valueA", 1))
	require.NoError(t, c.Insert("B", "valueB", 1))

	_, ok := c.Retrieve("evicted")
	assert.False(t, ok)
	assert.Equal(t, 2, c.GetWeight())

	// Touching A makes B the eviction candidate
	_, ok = c.Retrieve("A")
	require.True(t, ok)
	require.NoError(t, c.Insert("C", "valueC", 1))

	_, ok = c.Retrieve("B")
	assert.False(t, ok)
	_, ok = c.Retrieve("A")
	assert.True(t, ok)
	_, ok = c.Retrieve("C")
	assert.True(t, ok)
}

func TestCache_OversizedEntryEvictsEverything(t *testing.T) {
	c := NewCache(2)
	require.NoError(t, c.Insert("A", "valueA", 1))
	require.NoError(t, c.Insert("huge", "valueHuge", 3))

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.GetWeight())
}

func TestCache_Clear(t *testing.T) {
	c := NewCache(10)
	require.NoError(t, c.Insert("A", "valueA", 1))
	require.NoError(t, c.Insert("B", "valueB", 1))

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.GetWeight())

	_, ok := c.Retrieve("A")
	assert.False(t, ok)
	require.NoError(t, c.Insert("A", "valueA", 1))
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache(50)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			key := fmt.Sprintf("key%d", i%60)
			_ = c.Insert(key, i, 1)
			c.Retrieve(key)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.GetWeight(), c.GetBudget())
	assert.LessOrEqual(t, c.Len(), 50)
}
