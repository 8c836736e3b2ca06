// Package orderbook maintains a two-sided limit order book for a single
// instrument and continuously values a fixed target volume against it.
//
// It is a bookkeeping engine, not a matcher: orders are tracked and
// aggregated per price level but never crossed. After every mutation the
// affected side is re-valued and a Quote is published only when the value
// changed.
//
// The book is single-writer and deterministic. All orders live in an
// engine-owned arena; price levels, the order registry and the FIFO links
// between orders refer to them by handle only.
package orderbook
