package orderbook

import "feedbook/infra/memory"

// Ladder is one side of the book: price levels ordered best price first,
// plus a cached fill value for the target volume.
//
// The cache remembers the worst level it had to consume (the watermark).
// A mutation strictly behind the watermark cannot change which levels
// fill the target, so only mutations at or ahead of it invalidate.
type Ladder struct {
	side   Side
	tree   *priceTree
	total  uint64
	target uint64

	cached    uint64
	watermark uint32
	valid     bool

	recomputes int
}

func newLadder(side Side, target uint32) *Ladder {
	return &Ladder{
		side:   side,
		tree:   newPriceTree(),
		target: uint64(target),
		cached: NotAvailable,
	}
}

func (l *Ladder) Side() Side { return l.side }

// TotalVolume is the sum of every resting order's remaining volume.
func (l *Ladder) TotalVolume() uint64 { return l.total }

// Len is the number of distinct price levels.
func (l *Ladder) Len() int { return l.tree.size() }

// Level returns the level at price, or nil.
func (l *Ladder) Level(price uint32) *PriceLevel { return l.tree.find(price) }

// Best returns the level with the highest priority, or nil when empty.
func (l *Ladder) Best() *PriceLevel {
	if l.side == Buy {
		return l.tree.max()
	}
	return l.tree.min()
}

// Walk visits levels best price first until fn returns false.
func (l *Ladder) Walk(fn func(*PriceLevel) bool) {
	if l.side == Buy {
		l.tree.descend(fn)
	} else {
		l.tree.ascend(fn)
	}
}

// Prices lists level prices in priority order.
func (l *Ladder) Prices() []uint32 {
	out := make([]uint32, 0, l.tree.size())
	l.Walk(func(p *PriceLevel) bool {
		out = append(out, p.Price)
		return true
	})
	return out
}

// touch drops the cache when price is at or ahead of the watermark.
func (l *Ladder) touch(price uint32) {
	if l.valid && !l.side.better(l.watermark, price) {
		l.valid = false
		l.cached = NotAvailable
	}
}

func (l *Ladder) add(orders *memory.Arena[Order], h memory.Handle) {
	o := orders.Get(h)
	l.touch(o.Price)
	lvl, _ := l.tree.upsert(o.Price)
	lvl.Enqueue(orders, h)
	l.total += uint64(o.Volume)
}

// reduce takes up to volume off the order and reports the amount removed
// and whether the order left the book. An emptied level is evicted.
func (l *Ladder) reduce(orders *memory.Arena[Order], h memory.Handle, volume uint32) (uint32, bool) {
	o := orders.Get(h)
	l.touch(o.Price)
	lvl := l.tree.find(o.Price)

	if volume >= o.Volume {
		removed := o.Volume
		lvl.Remove(orders, h)
		if lvl.Empty() {
			l.tree.delete(o.Price)
		}
		l.total -= uint64(removed)
		return removed, true
	}

	o.Volume -= volume
	lvl.Volume -= uint64(volume)
	l.total -= uint64(volume)
	return volume, false
}

// FillValue is the cost, in ticks x volume, of taking the target volume
// from the best price outward. It is NotAvailable when the side is too
// thin to fill the target.
func (l *Ladder) FillValue() uint64 {
	if l.total < l.target {
		return NotAvailable
	}
	if l.valid {
		return l.cached
	}

	l.recomputes++
	remaining := l.target
	var value uint64
	var watermark uint32
	l.Walk(func(p *PriceLevel) bool {
		if remaining == 0 {
			return false
		}
		take := min(remaining, p.Volume)
		value += take * uint64(p.Price)
		remaining -= take
		watermark = p.Price
		return true
	})

	l.cached, l.watermark, l.valid = value, watermark, true
	return value
}
