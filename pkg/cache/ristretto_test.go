package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) *RistrettoCache {
	t.Helper()
	c, err := NewRistrettoCache(100, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c.(*RistrettoCache)
}

func TestRistrettoSetAndGet(t *testing.T) {
	c := newTestCache(t)

	require.True(t, c.Set("derived-id", "0xabc", time.Minute))
	c.Wait()

	value, found := c.Get("derived-id")
	require.True(t, found)
	assert.Equal(t, "0xabc", value)
}

func TestRistrettoMiss(t *testing.T) {
	c := newTestCache(t)

	_, found := c.Get("never-set")
	assert.False(t, found)
}

func TestRistrettoTTLExpiry(t *testing.T) {
	c := newTestCache(t)

	require.True(t, c.Set("short-lived", 42, 50*time.Millisecond))
	c.Wait()

	_, found := c.Get("short-lived")
	require.True(t, found)

	time.Sleep(100 * time.Millisecond)
	_, found = c.Get("short-lived")
	assert.False(t, found, "entry must expire after its TTL")
}

func TestRistrettoDelete(t *testing.T) {
	c := newTestCache(t)

	require.True(t, c.Set("doomed", "x", time.Minute))
	c.Wait()

	c.Delete("doomed")
	c.Wait()

	_, found := c.Get("doomed")
	assert.False(t, found)
}

func TestRistrettoClear(t *testing.T) {
	c := newTestCache(t)

	for i := 0; i < 10; i++ {
		require.True(t, c.Set(fmt.Sprintf("key-%d", i), i, time.Minute))
	}
	c.Wait()

	c.Clear()
	c.Wait()

	for i := 0; i < 10; i++ {
		_, found := c.Get(fmt.Sprintf("key-%d", i))
		assert.False(t, found, "key-%d survived clear", i)
	}
}
