// Package orchestrator turns a feed configuration into a running set of
// connection supervisors, one per (exchange, market, symbol batch, replica).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dkotov/pricefeed/internal/config"
	"github.com/dkotov/pricefeed/internal/connection"
	"github.com/dkotov/pricefeed/internal/exchange"
	"github.com/dkotov/pricefeed/internal/model"
	"github.com/dkotov/pricefeed/internal/publish"
	"github.com/dkotov/pricefeed/internal/symbols"
)

// Orchestrator owns the supervisors for every configured feed.
type Orchestrator struct {
	cfg    *config.FeedConfig
	pub    publish.Publisher
	logger *slog.Logger

	sups []*connection.Supervisor
}

// New creates an orchestrator. Call Build before Run.
func New(cfg *config.FeedConfig, pub publish.Publisher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:    cfg,
		pub:    pub,
		logger: logger,
	}
}

// Build constructs supervisors from the configuration. A broken exchange
// entry disables that exchange and is logged; Build fails only when no
// feed at all could be built.
func (o *Orchestrator) Build() error {
	for _, ex := range o.cfg.Exchanges {
		for _, mkt := range []struct {
			market model.Market
			cfg    config.MarketConfig
		}{
			{model.MarketSpot, ex.Spot},
			{model.MarketFutures, ex.Futures},
		} {
			if !mkt.cfg.Enabled {
				continue
			}
			sups, err := o.buildMarket(ex.Name, mkt.market, mkt.cfg)
			if err != nil {
				o.logger.Error("exchange feed disabled",
					"exchange", ex.Name,
					"market", mkt.market,
					"error", err,
				)
				continue
			}
			o.sups = append(o.sups, sups...)
		}
	}

	if len(o.sups) == 0 {
		return fmt.Errorf("no feeds could be built")
	}

	o.logger.Info("feeds built", "supervisors", len(o.sups))
	return nil
}

// buildMarket creates the supervisors for one market of one exchange.
func (o *Orchestrator) buildMarket(name string, market model.Market, mc config.MarketConfig) ([]*connection.Supervisor, error) {
	syms, err := loadSymbols(mc)
	if err != nil {
		return nil, err
	}
	if len(syms) == 0 {
		return nil, fmt.Errorf("empty symbol list")
	}

	adapter, err := exchange.New(name, market, syms)
	if err != nil {
		return nil, err
	}

	limits := adapter.Limits()
	var batches [][]string
	if limits.PerConnection > 0 {
		batches = symbols.Batch(syms, limits.PerConnection)
	} else {
		batches = [][]string{syms}
	}

	replicas := limits.Replicas
	if replicas < 1 {
		replicas = 1
	}

	supCfg := o.supervisorConfig()
	sups := make([]*connection.Supervisor, 0, len(batches)*replicas)
	for _, batch := range batches {
		for r := 0; r < replicas; r++ {
			sups = append(sups, connection.NewSupervisor(adapter, batch, r, supCfg, o.pub, o.logger))
		}
	}

	o.logger.Info("feed planned",
		"exchange", adapter.Name(),
		"market", market,
		"symbols", len(syms),
		"connections", len(batches)*replicas,
	)

	return sups, nil
}

// Run starts every supervisor and blocks until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sup := range o.sups {
		sup := sup
		g.Go(func() error {
			return sup.Run(ctx)
		})
	}
	return g.Wait()
}

// Supervisors returns the built supervisors, for health reporting.
func (o *Orchestrator) Supervisors() []*connection.Supervisor {
	return o.sups
}

func (o *Orchestrator) supervisorConfig() connection.SupervisorConfig {
	cc := o.cfg.Connections

	supCfg := connection.DefaultSupervisorConfig()
	supCfg.Client.HandshakeTimeout = cc.HandshakeTimeout
	supCfg.Client.WriteTimeout = cc.WriteTimeout
	supCfg.Client.PingInterval = cc.PingInterval
	supCfg.Client.StaleTimeout = cc.StaleTimeout
	supCfg.Client.BufferSize = cc.BufferSize
	supCfg.Backoff = connection.Backoff{
		Base: cc.ReconnectBaseDelay,
		Max:  cc.ReconnectMaxDelay,
	}
	supCfg.HealthyAfter = cc.HealthyAfter
	return supCfg
}

// loadSymbols merges the inline list with the symbols file, deduplicating
// while preserving order.
func loadSymbols(mc config.MarketConfig) ([]string, error) {
	merged := append([]string(nil), mc.Symbols...)

	if mc.SymbolsFile != "" {
		fromFile, err := symbols.LoadFile(mc.SymbolsFile)
		if err != nil {
			return nil, fmt.Errorf("load symbols file: %w", err)
		}
		merged = append(merged, fromFile...)
	}

	seen := make(map[string]bool, len(merged))
	out := merged[:0]
	for _, s := range merged {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}
