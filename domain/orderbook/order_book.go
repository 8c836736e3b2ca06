package orderbook

import (
	"errors"

	"feedbook/infra/memory"
)

var (
	ErrDuplicateOrder = errors.New("orderbook: duplicate order id")
	ErrUnknownOrder   = errors.New("orderbook: unknown order id")
	ErrInvalidOrder   = errors.New("orderbook: price and volume must be positive")
)

// Book is single-writer and deterministic.
type Book struct {
	bids   *Ladder
	asks   *Ladder
	orders *Registry
	arena  *memory.Arena[Order]

	target uint32
	last   [2]uint64
	sink   QuoteSink
}

type Option func(*Book)

// WithSink installs the receiver of published quotes.
func WithSink(s QuoteSink) Option {
	return func(b *Book) { b.sink = s }
}

// WithArena makes the book allocate orders from a, which it then owns.
func WithArena(a *memory.Arena[Order]) Option {
	return func(b *Book) { b.arena = a }
}

// NewBook creates an empty book valuing target units per side.
func NewBook(target uint32, opts ...Option) *Book {
	b := &Book{
		bids:   newLadder(Buy, target),
		asks:   newLadder(Sell, target),
		orders: NewRegistry(1024),
		target: target,
		last:   [2]uint64{NotAvailable, NotAvailable},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.arena == nil {
		b.arena = memory.NewArena[Order](memory.DefaultChunkSize)
	}
	return b
}

func (b *Book) Target() uint32 { return b.target }

// Ladder returns the given side of the book.
func (b *Book) Ladder(side Side) *Ladder {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

// Len is the number of live orders.
func (b *Book) Len() int { return b.orders.Len() }

// Order returns a copy of the live order with the given id.
func (b *Book) Order(id string) (Order, bool) {
	_, h, ok := b.orders.Lookup(id)
	if !ok {
		return Order{}, false
	}
	o := b.arena.Get(h)
	return Order{Side: o.Side, Price: o.Price, Volume: o.Volume}, true
}

// Add rests a new order at the back of its price level and re-values
// its side.
func (b *Book) Add(ts, id string, side Side, volume, price uint32) error {
	if volume == 0 || price == 0 {
		return ErrInvalidOrder
	}
	if b.orders.Contains(id) {
		return ErrDuplicateOrder
	}

	h, o := b.arena.Alloc()
	o.Side, o.Price, o.Volume = side, price, volume
	b.orders.Insert(id, side, h)
	b.Ladder(side).add(b.arena, h)

	b.check(side, ts)
	return nil
}

// Reduce removes up to volume from the order. Asking for at least the
// remaining volume cancels the order outright.
func (b *Book) Reduce(ts, id string, volume uint32) error {
	side, h, ok := b.orders.Lookup(id)
	if !ok {
		return ErrUnknownOrder
	}

	if _, gone := b.Ladder(side).reduce(b.arena, h, volume); gone {
		b.orders.Remove(id)
		b.arena.Free(h)
	}

	b.check(side, ts)
	return nil
}

// check re-values side and publishes a quote if the value moved.
func (b *Book) check(side Side, ts string) {
	v := b.Ladder(side).FillValue()
	if b.last[side] == v {
		return
	}
	b.last[side] = v
	if b.sink != nil {
		b.sink(Quote{Timestamp: ts, Side: side.Opposite(), Value: v})
	}
}
