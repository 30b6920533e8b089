// Package model defines the canonical tick type shared by every component
// of the price feed.
//
// Conventions:
//   - Exchange names: uppercase ("BINANCE", "OKX", ...)
//   - Symbols: canonical uppercase spelling, separators and perp suffixes stripped
//   - Timestamps: int64 milliseconds since Unix epoch (exchange event time)
package model
