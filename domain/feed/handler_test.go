package feed

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedbook/domain/orderbook"
)

var sampleFeed = []string{
	"28800538 A b S 44.26 100",
	"28800562 A c B 44.10 100",
	"28800744 R b 100",
	"28800758 A d B 44.18 157",
	"28800773 A e S 44.38 100",
	"28800796 R d 157",
	"28800812 A f B 44.18 157",
	"28800974 A g S 44.27 100",
	"28800975 R e 100",
	"28812071 R f 100",
	"28813129 A h B 43.68 50",
	"28813300 R f 57",
	"28813830 A i S 44.18 100",
	"28814087 A j S 44.18 1000",
	"28814834 R c 100",
	"28814864 A k B 44.09 100",
	"28815774 R k 100",
	"28815804 A l B 44.07 175",
	"28815937 R j 1000",
	"28816245 A m S 44.22 100",
}

var sampleOutput = []string{
	"28800758 S 8832.56",
	"28800796 S NA",
	"28800812 S 8832.56",
	"28800974 B 8865.00",
	"28800975 B NA",
	"28812071 S NA",
	"28813129 S 8806.50",
	"28813300 S NA",
	"28813830 B 8845.00",
	"28814087 B 8836.00",
	"28815804 S 8804.25",
	"28815937 B 8845.00",
	"28816245 B 8840.00",
}

func newTestHandler(target uint32) (*Handler, *[]string) {
	var out []string
	book := orderbook.NewBook(target, orderbook.WithSink(func(q orderbook.Quote) {
		out = append(out, q.String())
	}))
	return NewHandler(book, zerolog.Nop()), &out
}

func TestProcessCorrectLines(t *testing.T) {
	h, out := newTestHandler(200)
	for _, line := range sampleFeed {
		require.NoError(t, h.Process(line), line)
	}
	assert.True(t, h.Errors().Empty())
	assert.Equal(t, sampleOutput, *out)
}

func TestProcessCorruptedLines(t *testing.T) {
	h, _ := newTestHandler(200)
	errs := h.Errors()

	h.Process("28800538 *  b S 44.26 100")
	assert.Equal(t, uint64(1), errs.Count(KindCorrupted))
	h.Process("28800538 A  b T 44.26 100")
	assert.Equal(t, uint64(2), errs.Count(KindCorrupted))
	h.Process("28800538 A      b B AA.26 100")
	assert.Equal(t, uint64(3), errs.Count(KindCorrupted))
	h.Process("28800538 A b S 44.26   100")
	assert.Equal(t, uint64(3), errs.Count(KindCorrupted))
	h.Process("28800538 A b S 44.26 A")
	assert.Equal(t, uint64(4), errs.Count(KindCorrupted))

	h.Process("A* b S 44.26 100")
	h.Process("A b T 44.26 100")
	assert.Equal(t, uint64(6), errs.Count(KindCorrupted))
	assert.Equal(t, uint64(6), errs.Total())
}

func TestReduceUnknownOrder(t *testing.T) {
	h, out := newTestHandler(200)
	err := h.Process("28800744 R b 100")
	assert.ErrorIs(t, err, orderbook.ErrUnknownOrder)
	assert.Equal(t, uint64(1), h.Errors().Count(KindUnknownOrder))
	assert.Empty(t, *out)
}

func TestAddOrderTwice(t *testing.T) {
	h, _ := newTestHandler(200)
	require.NoError(t, h.Process("28800538 A b S 44.26 100"))
	assert.ErrorIs(t, h.Process("28800538 A b S 44.26 100"), orderbook.ErrDuplicateOrder)
	assert.Equal(t, uint64(1), h.Errors().Count(KindDuplicateOrder))
	assert.Equal(t, uint64(100), h.Book().Ladder(orderbook.Sell).TotalVolume())
}

func TestReduceNegativeVolume(t *testing.T) {
	h, _ := newTestHandler(200)
	require.NoError(t, h.Process("28800538 A b S 44.26 100"))
	h.Process("28800744 R b -100")
	assert.Equal(t, uint64(1), h.Errors().Count(KindOutOfRange))
	assert.Equal(t, uint64(0), h.Errors().Count(KindCorrupted))

	o, ok := h.Book().Order("b")
	require.True(t, ok)
	assert.Equal(t, uint32(100), o.Volume)
}

func TestPanicIsContained(t *testing.T) {
	calls := 0
	book := orderbook.NewBook(1, orderbook.WithSink(func(orderbook.Quote) {
		calls++
		if calls == 1 {
			panic("sink exploded")
		}
	}))
	h := NewHandler(book, zerolog.Nop())

	err := h.Process("1 A a B 1.00 1")
	require.Error(t, err)
	assert.Equal(t, KindUnexpected, KindOf(err))
	assert.Equal(t, uint64(1), h.Errors().Count(KindUnexpected))

	require.NoError(t, h.Process("2 A b S 1.00 1"))
	assert.Equal(t, 2, calls)
}

func TestSummaryReport(t *testing.T) {
	var s Summary
	assert.True(t, s.Empty())
	s.Record(KindCorrupted)
	s.Record(KindCorrupted)
	s.Record(KindUnexpected)

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "Errors:\n"+
		"[ GLOBAL] Corrupted messages: 2\n"+
		"[ GLOBAL] Out of bounds or otherwise weird data: 0\n"+
		"[  ORDER] Modify without corresponding order: 0\n"+
		"[  ORDER] Duplicate order id: 0\n"+
		"[SERIOUS] Unexpected exception: 1\n", buf.String())
	assert.Equal(t, uint64(3), s.Total())
	assert.False(t, s.Empty())
}

func TestKindStrings(t *testing.T) {
	names := make([]string, 0, len(Kinds))
	for _, k := range Kinds {
		names = append(names, k.String())
	}
	assert.Equal(t, []string{
		"corrupted-message",
		"out-of-range-numeric",
		"unknown-order",
		"duplicate-order",
		"unexpected-exception",
	}, names)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindDuplicateOrder, KindOf(orderbook.ErrDuplicateOrder))
	assert.Equal(t, KindUnknownOrder, KindOf(orderbook.ErrUnknownOrder))
	assert.Equal(t, KindOutOfRange, KindOf(orderbook.ErrInvalidOrder))
	assert.Equal(t, KindCorrupted, KindOf(corrupted("bad %d", 1)))
	assert.Equal(t, KindUnexpected, KindOf(assert.AnError))
}

func TestRejectCountsCorrupted(t *testing.T) {
	h, out := newTestHandler(1)
	err := h.Reject("line exceeds maximum length")
	assert.Equal(t, KindCorrupted, KindOf(err))
	assert.Equal(t, uint64(1), h.Errors().Count(KindCorrupted))

	require.NoError(t, h.Process("1 A a B 1.00 1"))
	assert.Equal(t, []string{"1 S 1.00"}, *out)
}
