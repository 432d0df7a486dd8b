package cache_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mediaqueue/pkg/cache"
)

func TestLRU(t *testing.T) {
	t.Parallel()

	t.Run("get and set", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRU[string, int](2)
		_, ok := c.Get("missing")
		assert.False(t, ok)

		assert.False(t, c.Set("a", 1))
		v, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)

		assert.False(t, c.Set("a", 2))
		v, _ = c.Get("a")
		assert.Equal(t, 2, v)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRU[string, int](2)
		c.Set("a", 1)
		c.Set("b", 2)
		c.Get("a")

		assert.True(t, c.Set("c", 3))
		_, ok := c.Get("b")
		assert.False(t, ok, "b was least recently used")
		_, ok = c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("capacity floor", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRU[int, int](0)
		c.Set(1, 1)
		c.Set(2, 2)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("delete and purge", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRU[string, int](4)
		c.Set("a", 1)
		c.Set("b", 2)

		assert.True(t, c.Delete("a"))
		assert.False(t, c.Delete("a"))
		assert.Equal(t, 1, c.Len())

		c.Purge()
		assert.Equal(t, 0, c.Len())
		_, ok := c.Get("b")
		assert.False(t, ok)
	})

	t.Run("concurrent access", func(t *testing.T) {
		t.Parallel()

		c := cache.NewLRU[string, int](16)
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range 100 {
					key := fmt.Sprintf("k%d", (i*100+j)%32)
					c.Set(key, j)
					c.Get(key)
				}
			}()
		}
		wg.Wait()
		assert.LessOrEqual(t, c.Len(), 16)
	})
}
