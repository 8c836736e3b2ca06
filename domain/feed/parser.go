package feed

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"feedbook/domain/orderbook"
)

const (
	ActionAdd    = 'A'
	ActionReduce = 'R'
)

const (
	sep      = ' '
	blanks   = " \t\n\v\f\r"
	sideBuy  = 'B'
	sideSell = 'S'
)

// Command is a validated feed message. Price is in ticks and only set
// for adds.
type Command struct {
	Timestamp string
	Action    byte
	OrderID   string
	Side      orderbook.Side
	Price     uint32
	Size      uint32
}

var maxTicks = decimal.NewFromInt(math.MaxUint32)

// Parse validates one line of the feed:
//
//	<timestamp> A <order_id> <B|S> <price> <size>
//	<timestamp> R <order_id> <size>
//
// Fields are separated by exactly one space. A single trailing carriage
// return is ignored. Bad size fields on a reduce are out-of-range; every
// other failure is a corrupted message.
func Parse(line string) (Command, error) {
	line = strings.TrimSuffix(line, "\r")

	tsEnd := strings.IndexByte(line, sep)
	if tsEnd <= 0 {
		return Command{}, corrupted("missing timestamp")
	}
	rest := line[tsEnd+1:]
	if len(rest) < 2 || rest[1] != sep {
		return Command{}, corrupted("action must be one character")
	}
	action := rest[0]
	rest = rest[2:]

	idEnd := strings.IndexByte(rest, sep)
	if idEnd <= 0 {
		return Command{}, corrupted("missing order id")
	}
	cmd := Command{
		Timestamp: line[:tsEnd],
		Action:    action,
		OrderID:   rest[:idEnd],
	}
	rest = rest[idEnd+1:]

	switch action {
	case ActionAdd:
		return parseAdd(cmd, rest)
	case ActionReduce:
		size, err := parseSize(rest)
		if err != nil {
			return Command{}, &Error{Kind: KindOutOfRange, Reason: "size: " + err.Error()}
		}
		cmd.Size = size
		return cmd, nil
	default:
		return Command{}, corrupted("unknown action %q", action)
	}
}

func parseAdd(cmd Command, rest string) (Command, error) {
	if len(rest) < 2 || rest[1] != sep {
		return Command{}, corrupted("side must be one character")
	}
	switch rest[0] {
	case sideBuy:
		cmd.Side = orderbook.Buy
	case sideSell:
		cmd.Side = orderbook.Sell
	default:
		return Command{}, corrupted("unknown side %q", rest[0])
	}
	rest = rest[2:]

	priceEnd := strings.IndexByte(rest, sep)
	if priceEnd < 0 {
		return Command{}, corrupted("missing size")
	}
	price, err := ParsePrice(rest[:priceEnd])
	if err != nil {
		return Command{}, corrupted("price: %v", err)
	}
	size, err := parseSize(rest[priceEnd+1:])
	if err != nil {
		return Command{}, corrupted("size: %v", err)
	}
	cmd.Price, cmd.Size = price, size
	return cmd, nil
}

var (
	errEmpty    = errors.New("empty")
	errNegative = errors.New("negative")
	errNotPos   = errors.New("not positive")
	errSyntax   = errors.New("not a number")
	errOverflow = errors.New("overflow")
)

// ParsePrice converts a decimal price to ticks, flooring anything beyond
// two decimal places.
func ParsePrice(s string) (uint32, error) {
	if s == "" {
		return 0, errEmpty
	}
	if strings.IndexByte(s, '-') >= 0 {
		return 0, errNegative
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errSyntax
	}
	// bound the exponent before any rescaling; 1e9 is already out of range
	if exp := d.Exponent(); exp > 8 || exp < -64 {
		return 0, errOverflow
	}
	ticks := d.Shift(orderbook.TickScale).Floor()
	if !ticks.IsPositive() {
		return 0, errNotPos
	}
	if ticks.GreaterThan(maxTicks) {
		return 0, errOverflow
	}
	return uint32(ticks.IntPart()), nil
}

// parseSize reads a positive uint32. Leading blanks are skipped, trailing
// ones are not.
func parseSize(s string) (uint32, error) {
	if strings.IndexByte(s, '-') >= 0 {
		return 0, errNegative
	}
	s = strings.TrimLeft(s, blanks)
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return 0, errEmpty
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errSyntax
		}
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errOverflow
	}
	if v == 0 {
		return 0, errNotPos
	}
	return uint32(v), nil
}
