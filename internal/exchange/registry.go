package exchange

import (
	"fmt"
	"strings"

	"github.com/dkotov/pricefeed/internal/model"
)

// New constructs the adapter variant for the named exchange and market.
// symbols is the exchange-native instrument list the adapter will serve;
// adapters that receive pushes for instruments they never asked for (MEXC)
// use it as an allow-set.
func New(name string, market model.Market, symbols []string) (Adapter, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "BINANCE":
		return NewBinance(market), nil
	case "BINGX":
		return NewBingX(market), nil
	case "BYBIT":
		return NewBybit(market), nil
	case "MEXC":
		return NewMEXC(market, symbols), nil
	case "OKX":
		return NewOKX(market), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownExchange, name)
}

// Names lists the supported exchange identifiers.
func Names() []string {
	return []string{"BINANCE", "BINGX", "BYBIT", "MEXC", "OKX"}
}
