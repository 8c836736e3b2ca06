package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedbook/infra/memory"
)

func newTestOrder(a *memory.Arena[Order], volume uint32) memory.Handle {
	h, o := a.Alloc()
	o.Side, o.Price, o.Volume = Buy, 100, volume
	return h
}

func queueVolumes(a *memory.Arena[Order], p *PriceLevel) []uint32 {
	var out []uint32
	p.Each(a, func(_ memory.Handle, o *Order) bool {
		out = append(out, o.Volume)
		return true
	})
	return out
}

func TestPriceLevelFIFO(t *testing.T) {
	a := memory.NewArena[Order](8)
	lvl := &PriceLevel{Price: 100}
	h1, h2, h3 := newTestOrder(a, 1), newTestOrder(a, 2), newTestOrder(a, 3)

	lvl.Enqueue(a, h1)
	lvl.Enqueue(a, h2)
	lvl.Enqueue(a, h3)

	assert.Equal(t, []uint32{1, 2, 3}, queueVolumes(a, lvl))
	assert.Equal(t, uint64(6), lvl.Volume)
	assert.Equal(t, 3, lvl.OrderCount)
}

func TestPriceLevelRemoveAnyPosition(t *testing.T) {
	a := memory.NewArena[Order](8)
	lvl := &PriceLevel{Price: 100}
	h1, h2, h3 := newTestOrder(a, 1), newTestOrder(a, 2), newTestOrder(a, 3)
	lvl.Enqueue(a, h1)
	lvl.Enqueue(a, h2)
	lvl.Enqueue(a, h3)

	lvl.Remove(a, h2)
	assert.Equal(t, []uint32{1, 3}, queueVolumes(a, lvl))
	assert.Equal(t, uint64(4), lvl.Volume)

	lvl.Remove(a, h1)
	assert.Equal(t, []uint32{3}, queueVolumes(a, lvl))

	h4 := newTestOrder(a, 4)
	lvl.Enqueue(a, h4)
	assert.Equal(t, []uint32{3, 4}, queueVolumes(a, lvl))

	lvl.Remove(a, h4)
	lvl.Remove(a, h3)
	require.True(t, lvl.Empty())
	assert.Equal(t, uint64(0), lvl.Volume)
	assert.Equal(t, 0, lvl.OrderCount)
}

func TestPriceLevelEachStops(t *testing.T) {
	a := memory.NewArena[Order](8)
	lvl := &PriceLevel{Price: 100}
	for i := uint32(1); i <= 5; i++ {
		lvl.Enqueue(a, newTestOrder(a, i))
	}
	seen := 0
	lvl.Each(a, func(memory.Handle, *Order) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)
	assert.Equal(t, "PriceLevel{Price=100, Orders=5, Volume=15}", lvl.String())
}
