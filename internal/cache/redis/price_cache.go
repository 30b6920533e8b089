package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dkotov/pricefeed/internal/model"
)

// ErrNotFound is returned when no price is cached for a key.
var ErrNotFound = errors.New("price not found")

// PriceCache stores the latest best bid/ask per instrument as a Redis hash
// at "{prefix}:{exchange}:{market}:{symbol}" with fields "bid", "ask" and
// "ts" (exchange event time, Unix milliseconds). Entries expire after TTL
// so a dead feed reads as absent, not stale.
type PriceCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client, prefix string, ttl time.Duration) *PriceCache {
	if prefix == "" {
		prefix = "price"
	}
	return &PriceCache{rdb: c.Underlying(), prefix: prefix, ttl: ttl}
}

func (pc *PriceCache) key(k model.Key) string {
	return pc.prefix + ":" + k.Exchange + ":" + string(k.Market) + ":" + k.Symbol
}

// Set stores a tick, refreshing the entry's TTL.
func (pc *PriceCache) Set(ctx context.Context, t model.Tick) error {
	key := pc.key(t.Key())
	fields := map[string]interface{}{
		"bid": strconv.FormatFloat(t.Bid, 'f', -1, 64),
		"ask": strconv.FormatFloat(t.Ask, 'f', -1, 64),
		"ts":  strconv.FormatInt(t.EventTimeMs, 10),
	}

	pipe := pc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	if pc.ttl > 0 {
		pipe.Expire(ctx, key, pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", key, err)
	}
	return nil
}

// Get retrieves the cached tick for a key. Returns ErrNotFound when the
// entry is absent or expired.
func (pc *PriceCache) Get(ctx context.Context, k model.Key) (model.Tick, error) {
	key := pc.key(k)
	vals, err := pc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return model.Tick{}, fmt.Errorf("redis: get price %s: %w", key, err)
	}
	if len(vals) == 0 {
		return model.Tick{}, ErrNotFound
	}

	bid, err := strconv.ParseFloat(vals["bid"], 64)
	if err != nil {
		return model.Tick{}, fmt.Errorf("redis: parse bid %s: %w", key, err)
	}
	ask, err := strconv.ParseFloat(vals["ask"], 64)
	if err != nil {
		return model.Tick{}, fmt.Errorf("redis: parse ask %s: %w", key, err)
	}
	ts, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return model.Tick{}, fmt.Errorf("redis: parse ts %s: %w", key, err)
	}

	return model.Tick{
		Exchange:    k.Exchange,
		Market:      k.Market,
		Symbol:      k.Symbol,
		Bid:         bid,
		Ask:         ask,
		EventTimeMs: ts,
	}, nil
}
