package orderbook

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// NotAvailable marks a side that cannot fill the target volume.
const NotAvailable uint64 = math.MaxUint64

// TickScale is the number of decimal places kept in a price tick.
const TickScale = 2

// Quote is one published change of a side's fill value.
//
// Side is the label written on the wire, which is the side opposite the
// ladder that changed: a move in the bids is quoted as "S" (the cost of
// selling the target into them) and vice versa.
type Quote struct {
	Timestamp string
	Side      Side
	Value     uint64
}

func (q Quote) Available() bool { return q.Value != NotAvailable }

// Amount converts Value from ticks back to a price amount.
func (q Quote) Amount() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(q.Value), -TickScale)
}

// String renders the output line: "<timestamp> <side> <value|NA>".
func (q Quote) String() string {
	if !q.Available() {
		return q.Timestamp + " " + q.Side.String() + " NA"
	}
	return q.Timestamp + " " + q.Side.String() + " " + q.Amount().StringFixed(TickScale)
}

// QuoteSink receives every published quote, in order.
type QuoteSink func(Quote)
