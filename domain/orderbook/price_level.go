package orderbook

import (
	"fmt"

	"feedbook/infra/memory"
)

// PriceLevel is the FIFO queue of orders resting at a single price.
// Orders are linked through their arena handles, so removal of any order
// is O(1) given its handle.
type PriceLevel struct {
	Price      uint32
	Volume     uint64
	OrderCount int

	head memory.Handle
	tail memory.Handle
}

// Enqueue appends the order behind every order already at this price.
func (p *PriceLevel) Enqueue(orders *memory.Arena[Order], h memory.Handle) {
	o := orders.Get(h)
	o.prev = p.tail
	o.next = memory.Nil
	if p.tail.IsNil() {
		p.head = h
	} else {
		orders.Get(p.tail).next = h
	}
	p.tail = h
	p.Volume += uint64(o.Volume)
	p.OrderCount++
}

// Remove unlinks the order wherever it sits in the queue and takes its
// remaining volume off the level.
func (p *PriceLevel) Remove(orders *memory.Arena[Order], h memory.Handle) {
	o := orders.Get(h)
	if o.prev.IsNil() {
		p.head = o.next
	} else {
		orders.Get(o.prev).next = o.next
	}
	if o.next.IsNil() {
		p.tail = o.prev
	} else {
		orders.Get(o.next).prev = o.prev
	}
	o.next, o.prev = memory.Nil, memory.Nil
	p.Volume -= uint64(o.Volume)
	p.OrderCount--
}

func (p *PriceLevel) Empty() bool {
	return p.head.IsNil()
}

// Each visits orders in time priority until fn returns false.
func (p *PriceLevel) Each(orders *memory.Arena[Order], fn func(memory.Handle, *Order) bool) {
	for h := p.head; !h.IsNil(); {
		o := orders.Get(h)
		next := o.next
		if !fn(h, o) {
			return
		}
		h = next
	}
}

func (p *PriceLevel) String() string {
	return fmt.Sprintf("PriceLevel{Price=%d, Orders=%d, Volume=%d}", p.Price, p.OrderCount, p.Volume)
}
