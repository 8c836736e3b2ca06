package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"feedbook/infra/memory"
)

func TestRegistryLifecycle(t *testing.T) {
	a := memory.NewArena[Order](4)
	h1, _ := a.Alloc()
	h2, _ := a.Alloc()
	r := NewRegistry(0)

	assert.True(t, r.Insert("a", Sell, h1))
	assert.False(t, r.Insert("a", Buy, h2), "id already live")

	side, h, ok := r.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, Sell, side)
	assert.Equal(t, h1, h)
	assert.Equal(t, 1, r.Len())

	r.Remove("a")
	assert.False(t, r.Contains("a"))
	_, _, ok = r.Lookup("a")
	assert.False(t, ok)
	assert.NotNil(t, a.Get(h1), "the registry never frees orders")
}
