package exchange

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dkotov/pricefeed/internal/model"
)

const (
	bingxSpotURL    = "wss://open-api-ws.bingx.com/market"
	bingxFuturesURL = "wss://open-api-swap.bingx.com/swap-market"

	// BingX allows at most 200 dataTypes per connection.
	bingxSymbolsPerConn = 200
)

// BingX subscribes one dataType per message and pushes gzip/zlib-compressed
// payloads. Its application-level keep-alive is a literal "Ping" text frame
// that must be answered with "Pong".
type BingX struct {
	market model.Market
	url    string
}

// NewBingX returns the BingX ticker adapter for the given market.
func NewBingX(market model.Market) *BingX {
	url := bingxSpotURL
	if market == model.MarketFutures {
		url = bingxFuturesURL
	}
	return &BingX{market: market, url: url}
}

func (b *BingX) Name() string              { return "BINGX" }
func (b *BingX) Market() model.Market      { return b.market }
func (b *BingX) URL(batch []string) string { return b.url }

func (b *BingX) Limits() Limits {
	return Limits{PerConnection: bingxSymbolsPerConn, PerMessage: 1, Replicas: 1}
}

type bingxSubscribe struct {
	ID       string `json:"id"`
	ReqType  string `json:"reqType"`
	DataType string `json:"dataType"`
}

func (b *BingX) SubscribeMessages(batch []string) [][]byte {
	msgs := make([][]byte, 0, len(batch))
	for _, sym := range batch {
		data, _ := json.Marshal(bingxSubscribe{
			ID:       uuid.NewString(),
			ReqType:  "sub",
			DataType: sym + "@ticker",
		})
		msgs = append(msgs, data)
	}
	return msgs
}

func (b *BingX) KeepAlive() ([]byte, time.Duration) { return nil, 0 }

type bingxEnvelope struct {
	DataType string          `json:"dataType"`
	Topic    string          `json:"topic"`
	Symbol   string          `json:"symbol"`
	Data     json.RawMessage `json:"data"`
	Code     *int            `json:"code"`
}

type bingxTicker struct {
	Bid          json.Number `json:"b"`
	Ask          json.Number `json:"a"`
	BidAlt       json.Number `json:"bid"`
	AskAlt       json.Number `json:"ask"`
	BestBidPrice json.Number `json:"bestBidPrice"`
	BestAskPrice json.Number `json:"bestAskPrice"`
	EventTime    int64       `json:"E"`
	Time         int64       `json:"time"`
	TS           int64       `json:"ts"`
	TradeTime    int64       `json:"T"`
}

var errBingXNoPrices = errors.New("ticker frame without bid/ask")

func (b *BingX) Decode(frame []byte) Result {
	// Application-level keep-alive, distinct from the transport ping.
	if strings.TrimSpace(string(frame)) == "Ping" {
		return Result{Kind: Ping, Pong: []byte("Pong")}
	}

	text := frame
	if !looksLikeText(frame) {
		var err error
		text, err = decompress(frame)
		if err != nil {
			return malformed(err)
		}
		if strings.TrimSpace(string(text)) == "Ping" {
			return Result{Kind: Ping, Pong: []byte("Pong")}
		}
	}
	if len(text) == 0 || (text[0] != '{' && text[0] != '[') {
		return ignored()
	}

	var env bingxEnvelope
	if err := json.Unmarshal(text, &env); err != nil {
		return malformed(err)
	}

	// Subscribe acks carry a code and no data. Some streams push the
	// ticker fields at the top level with no data envelope at all.
	payload := env.Data
	if len(payload) == 0 {
		if env.Code != nil {
			return ignored()
		}
		payload = text
	}

	symbol := env.DataType
	if symbol == "" {
		symbol = env.Topic
	}
	if i := strings.IndexByte(symbol, '@'); i >= 0 {
		symbol = symbol[:i]
	}
	if symbol == "" {
		symbol = env.Symbol
	}
	if symbol == "" {
		return malformed(errBingXNoPrices)
	}

	var tk bingxTicker
	if err := json.Unmarshal(payload, &tk); err != nil {
		return malformed(err)
	}

	bid := firstPositive(tk.Bid, tk.BidAlt, tk.BestBidPrice)
	ask := firstPositive(tk.Ask, tk.AskAlt, tk.BestAskPrice)
	if bid <= 0 || ask <= 0 {
		return malformed(errBingXNoPrices)
	}

	ts := firstNonZero(tk.EventTime, tk.Time, tk.TS, tk.TradeTime)
	if ts == 0 {
		ts = NowMs()
	}

	return ticks([]model.Tick{{
		Exchange:    b.Name(),
		Market:      b.market,
		Symbol:      model.NormalizeSymbol(symbol),
		Bid:         bid,
		Ask:         ask,
		EventTimeMs: ts,
	}})
}

func firstPositive(nums ...json.Number) float64 {
	for _, n := range nums {
		if n == "" {
			continue
		}
		if v, err := strconv.ParseFloat(n.String(), 64); err == nil && v > 0 {
			return v
		}
	}
	return 0
}

func firstNonZero(nums ...int64) int64 {
	for _, n := range nums {
		if n != 0 {
			return n
		}
	}
	return 0
}
