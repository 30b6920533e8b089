// Package store keeps the latest best bid/ask per (exchange, market, symbol).
//
// The store is a last-write-wins map ordered by event time: a merge only
// replaces the held tick when the incoming event time is greater than or
// equal to the stored one, so out-of-order frames from a reconnecting feed
// never roll a price backwards.
package store
