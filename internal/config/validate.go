package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dkotov/pricefeed/internal/exchange"
)

// Validate checks that all required fields are set and values are valid.
func (c *FeedConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if len(c.Exchanges) == 0 {
		return errors.New("at least one exchange is required")
	}
	seen := make(map[string]bool, len(c.Exchanges))
	for i, ex := range c.Exchanges {
		if ex.Name == "" {
			return fmt.Errorf("exchanges[%d].name is required", i)
		}
		if !knownExchange(ex.Name) {
			return fmt.Errorf("exchanges[%d].name %q is not supported", i, ex.Name)
		}
		if seen[strings.ToUpper(ex.Name)] {
			return fmt.Errorf("exchange %q listed twice", ex.Name)
		}
		seen[strings.ToUpper(ex.Name)] = true

		if !ex.Spot.Enabled && !ex.Futures.Enabled {
			return fmt.Errorf("exchange %q has no market enabled", ex.Name)
		}
		for _, mc := range []struct {
			name string
			cfg  MarketConfig
		}{{"spot", ex.Spot}, {"futures", ex.Futures}} {
			if mc.cfg.Enabled && len(mc.cfg.Symbols) == 0 && mc.cfg.SymbolsFile == "" {
				return fmt.Errorf("exchange %q %s has no symbols and no symbols_file", ex.Name, mc.name)
			}
		}
	}

	if c.Publish.UDPAddr == "" && !c.Publish.Stdout && !c.Postgres.Enabled && !c.Redis.Enabled {
		return errors.New("no publisher configured: set publish.udp_addr, publish.stdout, postgres, or redis")
	}

	if c.Postgres.Enabled {
		if err := c.Postgres.validate("postgres"); err != nil {
			return err
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}

	if c.Connections.BufferSize < 1 {
		return errors.New("connections.buffer_size must be >= 1")
	}
	if c.Writers.BatchSize < 1 {
		return errors.New("writers.batch_size must be >= 1")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (db *PostgresConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// Validate checks collector fields after defaults.
func (c *CollectorConfig) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr is required")
	}
	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}
	return nil
}

func knownExchange(name string) bool {
	for _, n := range exchange.Names() {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
