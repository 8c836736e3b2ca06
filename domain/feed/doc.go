// Package feed turns raw feed lines into book mutations.
//
// Each line is parsed into a Command, applied to an orderbook.Book and,
// when anything goes wrong, classified into one of five error kinds and
// tallied in a Summary. A bad line never stops the feed.
package feed
