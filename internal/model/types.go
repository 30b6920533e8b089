package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Market distinguishes spot and perpetual futures instruments.
type Market string

const (
	MarketSpot    Market = "SPOT"
	MarketFutures Market = "FUTURES"
)

// ParseMarket converts a wire/config spelling to a Market.
func ParseMarket(s string) (Market, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SPOT":
		return MarketSpot, nil
	case "FUTURES", "FUTURE", "SWAP", "LINEAR":
		return MarketFutures, nil
	}
	return "", fmt.Errorf("unknown market %q", s)
}

// Key identifies one instrument on one exchange venue.
type Key struct {
	Exchange string
	Market   Market
	Symbol   string
}

func (k Key) String() string {
	return k.Exchange + "/" + string(k.Market) + "/" + k.Symbol
}

// Tick is one normalized best-bid/ask update. Bid and Ask are always
// positive on a constructed Tick; decoders drop updates with either side
// missing instead of constructing a partial tick.
type Tick struct {
	Exchange    string
	Market      Market
	Symbol      string
	Bid         float64
	Ask         float64
	EventTimeMs int64     // exchange event time, else local receive time
	ReceivedAt  time.Time // local time the frame was read off the socket
}

// Key returns the store key for this tick.
func (t Tick) Key() Key {
	return Key{Exchange: t.Exchange, Market: t.Market, Symbol: t.Symbol}
}

// Line renders the tick in the 6-field CSV wire format consumed by the
// collector: exchange,market,symbol,bid,ask,eventTimeMs with a trailing
// newline. No quoting, no brackets.
func (t Tick) Line() string {
	return t.Exchange + "," +
		string(t.Market) + "," +
		t.Symbol + "," +
		strconv.FormatFloat(t.Bid, 'f', -1, 64) + "," +
		strconv.FormatFloat(t.Ask, 'f', -1, 64) + "," +
		strconv.FormatInt(t.EventTimeMs, 10) + "\n"
}

// Errors returned by ParseLine.
var (
	ErrFieldCount = errors.New("line does not have exactly 6 fields")
	ErrBadPrice   = errors.New("bid/ask is not a positive number")
)

// ParseLine parses one CSV wire line back into a Tick. Lines with any other
// field count, a bad market, or non-numeric prices are rejected.
func ParseLine(data []byte) (Tick, error) {
	line := strings.TrimSpace(string(data))
	parts := strings.Split(line, ",")
	if len(parts) != 6 {
		return Tick{}, ErrFieldCount
	}

	market, err := ParseMarket(parts[1])
	if err != nil {
		return Tick{}, err
	}

	bid, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil || bid <= 0 {
		return Tick{}, ErrBadPrice
	}
	ask, err := strconv.ParseFloat(strings.TrimSpace(parts[4]), 64)
	if err != nil || ask <= 0 {
		return Tick{}, ErrBadPrice
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(parts[5]), 10, 64)
	if err != nil {
		return Tick{}, fmt.Errorf("parse event time: %w", err)
	}

	return Tick{
		Exchange:    strings.ToUpper(strings.TrimSpace(parts[0])),
		Market:      market,
		Symbol:      NormalizeSymbol(parts[2]),
		Bid:         bid,
		Ask:         ask,
		EventTimeMs: ts,
	}, nil
}

// NormalizeSymbol maps an exchange-native instrument spelling to the one
// canonical form used as the merge key: uppercase, "-" and "_" stripped,
// SWAP/PERP suffixes removed. Idempotent.
//
//	BTC-USDT-SWAP -> BTCUSDT
//	BTC_USDT      -> BTCUSDT
//	btcusdt       -> BTCUSDT
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	for {
		trimmed := strings.TrimSuffix(s, "SWAP")
		trimmed = strings.TrimSuffix(trimmed, "PERP")
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}
