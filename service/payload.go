package service

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"feedbook/domain/orderbook"
)

// QuoteEvent is the published form of a quote.
type QuoteEvent struct {
	Seq       uint64
	Timestamp string
	Side      string
	Value     string
	Available bool
	Target    uint32
}

var marshal = proto.MarshalOptions{Deterministic: true}

// EncodeQuote renders a quote as a protobuf Struct. Seq travels as a
// string since Struct numbers are doubles.
func EncodeQuote(seq uint64, target uint32, q orderbook.Quote) ([]byte, error) {
	value := "NA"
	if q.Available() {
		value = q.Amount().StringFixed(orderbook.TickScale)
	}
	st, err := structpb.NewStruct(map[string]any{
		"seq":       strconv.FormatUint(seq, 10),
		"timestamp": q.Timestamp,
		"side":      q.Side.String(),
		"value":     value,
		"available": q.Available(),
		"target":    float64(target),
	})
	if err != nil {
		return nil, errors.Wrap(err, "build quote struct")
	}
	return marshal.Marshal(st)
}

func DecodeQuote(b []byte) (QuoteEvent, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		return QuoteEvent{}, errors.Wrap(err, "decode quote")
	}
	f := st.GetFields()
	seq, err := strconv.ParseUint(f["seq"].GetStringValue(), 10, 64)
	if err != nil {
		return QuoteEvent{}, errors.Wrap(err, "decode quote seq")
	}
	return QuoteEvent{
		Seq:       seq,
		Timestamp: f["timestamp"].GetStringValue(),
		Side:      f["side"].GetStringValue(),
		Value:     f["value"].GetStringValue(),
		Available: f["available"].GetBoolValue(),
		Target:    uint32(f["target"].GetNumberValue()),
	}, nil
}
