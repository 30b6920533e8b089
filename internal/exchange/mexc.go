package exchange

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/dkotov/pricefeed/internal/model"
)

const (
	mexcSpotURL    = "wss://wbs-api.mexc.com/ws"
	mexcFuturesURL = "wss://contract.mexc.com/edge"

	mexcSpotChannel = "spot@public.miniTickers.v3.api.pb@UTC+3"
	mexcPingEvery   = 20 * time.Second

	// MEXC pushes the full venue on one subscription, so two redundant
	// connections per market cover drops without any resubscribe cost.
	mexcReplicas = 2
)

// MEXC pushes venue-wide ticker broadcasts rather than per-symbol
// subscriptions, so the adapter filters pushes against the configured
// instrument set. Spot miniTickers carry only a last price; bid and ask are
// both set to it.
type MEXC struct {
	market model.Market
	url    string
	allow  map[string]struct{}
}

// NewMEXC returns the MEXC ticker adapter for the given market. symbols is
// the allow-set in MEXC's native spelling (BTCUSDT spot, BTC_USDT futures).
func NewMEXC(market model.Market, symbols []string) *MEXC {
	url := mexcSpotURL
	if market == model.MarketFutures {
		url = mexcFuturesURL
	}
	allow := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		allow[s] = struct{}{}
	}
	return &MEXC{market: market, url: url, allow: allow}
}

func (m *MEXC) Name() string              { return "MEXC" }
func (m *MEXC) Market() model.Market      { return m.market }
func (m *MEXC) URL(batch []string) string { return m.url }

func (m *MEXC) Limits() Limits {
	return Limits{Replicas: mexcReplicas}
}

func (m *MEXC) SubscribeMessages(batch []string) [][]byte {
	if m.market == model.MarketFutures {
		data, _ := json.Marshal(map[string]any{
			"method": "sub.tickers",
			"param":  map[string]any{},
			"gzip":   false,
		})
		return [][]byte{data}
	}
	data, _ := json.Marshal(map[string]any{
		"method": "SUBSCRIPTION",
		"params": []string{mexcSpotChannel},
	})
	return [][]byte{data}
}

func (m *MEXC) KeepAlive() ([]byte, time.Duration) {
	// The spot and contract endpoints disagree on ping casing.
	if m.market == model.MarketFutures {
		return []byte(`{"method":"ping"}`), mexcPingEvery
	}
	return []byte(`{"method":"PING"}`), mexcPingEvery
}

type mexcSpotMessage struct {
	Channel  string `json:"channel"`
	SendTime int64  `json:"sendTime"`
	Payload  struct {
		Items []struct {
			Symbol string      `json:"symbol"`
			Price  json.Number `json:"price"`
		} `json:"items"`
	} `json:"publicMiniTickers"`
}

type mexcFuturesMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type mexcFuturesItem struct {
	Symbol    string      `json:"symbol"`
	Last      json.Number `json:"lastPrice"`
	MaxBid    json.Number `json:"maxBidPrice"`
	MinAsk    json.Number `json:"minAskPrice"`
	Timestamp int64       `json:"timestamp"`
}

var errMEXCNoTicks = errors.New("push frame without usable items")

func (m *MEXC) Decode(frame []byte) Result {
	if m.market == model.MarketFutures {
		return m.decodeFutures(frame)
	}
	return m.decodeSpot(frame)
}

func (m *MEXC) decodeSpot(frame []byte) Result {
	var msg mexcSpotMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return malformed(err)
	}
	if msg.Channel == "" || msg.Channel == "PONG" {
		return ignored()
	}
	if len(msg.Payload.Items) == 0 {
		return ignored()
	}

	ts := msg.SendTime
	if ts == 0 {
		ts = NowMs()
	}

	var out []model.Tick
	for _, it := range msg.Payload.Items {
		if _, ok := m.allow[it.Symbol]; !ok {
			continue
		}
		price, err := strconv.ParseFloat(it.Price.String(), 64)
		if err != nil || price <= 0 {
			continue
		}
		out = append(out, model.Tick{
			Exchange:    m.Name(),
			Market:      m.market,
			Symbol:      model.NormalizeSymbol(it.Symbol),
			Bid:         price,
			Ask:         price,
			EventTimeMs: ts,
		})
	}
	if len(out) == 0 {
		return ignored()
	}
	return ticks(out)
}

func (m *MEXC) decodeFutures(frame []byte) Result {
	var msg mexcFuturesMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return malformed(err)
	}
	if msg.Channel != "push.tickers" {
		return ignored()
	}

	var items []mexcFuturesItem
	if err := json.Unmarshal(msg.Data, &items); err != nil {
		return malformed(err)
	}
	if len(items) == 0 {
		return malformed(errMEXCNoTicks)
	}

	var out []model.Tick
	for _, it := range items {
		if _, ok := m.allow[it.Symbol]; !ok {
			continue
		}
		last, err := strconv.ParseFloat(it.Last.String(), 64)
		if err != nil || last <= 0 {
			continue
		}

		bid := last
		if v, err := strconv.ParseFloat(it.MaxBid.String(), 64); err == nil && v > 0 {
			bid = v
		}
		ask := last
		if v, err := strconv.ParseFloat(it.MinAsk.String(), 64); err == nil && v > 0 {
			ask = v
		}

		ts := it.Timestamp
		if ts == 0 {
			ts = NowMs()
		}

		out = append(out, model.Tick{
			Exchange:    m.Name(),
			Market:      m.market,
			Symbol:      model.NormalizeSymbol(it.Symbol),
			Bid:         bid,
			Ask:         ask,
			EventTimeMs: ts,
		})
	}
	if len(out) == 0 {
		return ignored()
	}
	return ticks(out)
}
