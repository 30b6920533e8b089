package collector

import (
	"encoding/json"
	"net/http"
	"sort"
)

type priceEntry struct {
	Exchange    string  `json:"exchange"`
	Market      string  `json:"market"`
	Symbol      string  `json:"symbol"`
	Bid         float64 `json:"bid"`
	Ask         float64 `json:"ask"`
	EventTimeMs int64   `json:"event_time_ms"`
}

// PricesHandler serves the current store snapshot as JSON, sorted by
// exchange, market, symbol for stable output.
func (c *Collector) PricesHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := c.store.Snapshot()

		entries := make([]priceEntry, 0, len(snap))
		for _, t := range snap {
			entries = append(entries, priceEntry{
				Exchange:    t.Exchange,
				Market:      string(t.Market),
				Symbol:      t.Symbol,
				Bid:         t.Bid,
				Ask:         t.Ask,
				EventTimeMs: t.EventTimeMs,
			})
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Exchange != entries[j].Exchange {
				return entries[i].Exchange < entries[j].Exchange
			}
			if entries[i].Market != entries[j].Market {
				return entries[i].Market < entries[j].Market
			}
			return entries[i].Symbol < entries[j].Symbol
		})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	})
}
