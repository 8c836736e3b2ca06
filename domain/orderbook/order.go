package orderbook

import "feedbook/infra/memory"

type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "B"
	}
	return "S"
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// better reports whether price a has priority over price b on this side:
// higher wins for bids, lower wins for asks.
func (s Side) better(a, b uint32) bool {
	if s == Buy {
		return a > b
	}
	return a < b
}

// Order is a resting order. Price is in ticks (price x 100, floored).
type Order struct {
	Side   Side
	Price  uint32
	Volume uint32

	next memory.Handle
	prev memory.Handle
}
