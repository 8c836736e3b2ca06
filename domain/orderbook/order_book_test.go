package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	quotes []Quote
}

func (r *recorder) sink(q Quote) { r.quotes = append(r.quotes, q) }

func (r *recorder) lines() []string {
	out := make([]string, 0, len(r.quotes))
	for _, q := range r.quotes {
		out = append(out, q.String())
	}
	return out
}

func newTestBook(target uint32) (*Book, *recorder) {
	rec := &recorder{}
	return NewBook(target, WithSink(rec.sink)), rec
}

func TestBookAddAndLookup(t *testing.T) {
	book, _ := newTestBook(200)
	require.NoError(t, book.Add("1", "a", Sell, 100, 4426))

	o, ok := book.Order("a")
	require.True(t, ok)
	assert.Equal(t, Order{Side: Sell, Price: 4426, Volume: 100}, o)
	assert.Equal(t, 1, book.Len())
	assert.Equal(t, uint64(100), book.Ladder(Sell).TotalVolume())
	assert.Equal(t, uint64(0), book.Ladder(Buy).TotalVolume())
}

func TestBookDuplicateLeavesOriginal(t *testing.T) {
	book, _ := newTestBook(200)
	require.NoError(t, book.Add("1", "a", Sell, 100, 4426))

	err := book.Add("2", "a", Buy, 5, 1000)
	assert.ErrorIs(t, err, ErrDuplicateOrder)

	o, ok := book.Order("a")
	require.True(t, ok)
	assert.Equal(t, Order{Side: Sell, Price: 4426, Volume: 100}, o)
	assert.Equal(t, uint64(0), book.Ladder(Buy).TotalVolume())
	assert.Equal(t, 1, book.Len())
}

func TestBookReduceUnknown(t *testing.T) {
	book, rec := newTestBook(200)
	require.NoError(t, book.Add("1", "a", Sell, 100, 4426))

	assert.ErrorIs(t, book.Reduce("2", "zz", 10), ErrUnknownOrder)
	assert.Equal(t, uint64(100), book.Ladder(Sell).TotalVolume())
	assert.Empty(t, rec.quotes)
}

func TestBookReduceRemovesOrderAndLevel(t *testing.T) {
	book, _ := newTestBook(200)
	require.NoError(t, book.Add("1", "a", Buy, 100, 4410))
	require.NoError(t, book.Add("2", "b", Buy, 50, 4410))

	require.NoError(t, book.Reduce("3", "a", 30))
	o, _ := book.Order("a")
	assert.Equal(t, uint32(70), o.Volume)
	assert.Equal(t, uint64(120), book.Ladder(Buy).Level(4410).Volume)

	require.NoError(t, book.Reduce("4", "a", 70))
	_, ok := book.Order("a")
	assert.False(t, ok)
	assert.NotNil(t, book.Ladder(Buy).Level(4410))

	require.NoError(t, book.Reduce("5", "b", 1000))
	assert.Nil(t, book.Ladder(Buy).Level(4410))
	assert.Equal(t, 0, book.Ladder(Buy).Len())
	assert.Equal(t, 0, book.Len())

	// a removed id may be reused
	require.NoError(t, book.Add("6", "a", Sell, 1, 1))
}

func TestBookRejectsNonPositive(t *testing.T) {
	book, _ := newTestBook(200)
	assert.ErrorIs(t, book.Add("1", "a", Buy, 0, 100), ErrInvalidOrder)
	assert.ErrorIs(t, book.Add("1", "a", Buy, 10, 0), ErrInvalidOrder)
	assert.Equal(t, 0, book.Len())
}

func TestBookPublishesOnlyChanges(t *testing.T) {
	book, rec := newTestBook(200)

	// the initial state counts as NA, so thin sides stay silent
	require.NoError(t, book.Add("1", "c", Buy, 100, 4410))
	assert.Empty(t, rec.quotes)

	require.NoError(t, book.Add("2", "d", Buy, 157, 4418))
	require.NoError(t, book.Add("3", "x", Buy, 1, 4000))
	require.NoError(t, book.Reduce("4", "d", 157))

	assert.Equal(t, []string{
		"2 S 8832.56",
		"4 S NA",
	}, rec.lines())
}

func TestQuoteString(t *testing.T) {
	assert.Equal(t, "7 B 8865.00", Quote{Timestamp: "7", Side: Buy, Value: 886500}.String())
	assert.Equal(t, "7 S NA", Quote{Timestamp: "7", Side: Sell, Value: NotAvailable}.String())
	assert.Equal(t, "7 S 0.05", Quote{Timestamp: "7", Side: Sell, Value: 5}.String())

	huge := Quote{Timestamp: "t", Side: Buy, Value: NotAvailable - 1}
	assert.Equal(t, "t B 184467440737095516.14", huge.String())
}

func TestSideHelpers(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
	assert.True(t, Buy.better(2, 1))
	assert.True(t, Sell.better(1, 2))
	assert.Equal(t, "B", Buy.String())
	assert.Equal(t, "S", Sell.String())
}
