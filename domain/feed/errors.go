package feed

import (
	"errors"
	"fmt"

	"feedbook/domain/orderbook"
)

type ErrorKind uint8

const (
	KindCorrupted ErrorKind = iota
	KindOutOfRange
	KindUnknownOrder
	KindDuplicateOrder
	KindUnexpected

	numKinds
)

// Kinds lists every error kind in report order.
var Kinds = [numKinds]ErrorKind{
	KindCorrupted,
	KindOutOfRange,
	KindUnknownOrder,
	KindDuplicateOrder,
	KindUnexpected,
}

func (k ErrorKind) String() string {
	switch k {
	case KindCorrupted:
		return "corrupted-message"
	case KindOutOfRange:
		return "out-of-range-numeric"
	case KindUnknownOrder:
		return "unknown-order"
	case KindDuplicateOrder:
		return "duplicate-order"
	case KindUnexpected:
		return "unexpected-exception"
	default:
		return "unknown"
	}
}

// Error is a classified failure of a single message.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	return "feed: " + e.Kind.String() + ": " + e.Reason
}

func corrupted(format string, args ...any) *Error {
	return &Error{Kind: KindCorrupted, Reason: fmt.Sprintf(format, args...)}
}

// KindOf classifies err. Anything not recognised is unexpected.
func KindOf(err error) ErrorKind {
	var fe *Error
	switch {
	case errors.As(err, &fe):
		return fe.Kind
	case errors.Is(err, orderbook.ErrDuplicateOrder):
		return KindDuplicateOrder
	case errors.Is(err, orderbook.ErrUnknownOrder):
		return KindUnknownOrder
	case errors.Is(err, orderbook.ErrInvalidOrder):
		return KindOutOfRange
	default:
		return KindUnexpected
	}
}
