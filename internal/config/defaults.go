package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 10
	DefaultMinConns  = 2

	DefaultRedisKeyPrefix = "price"
	DefaultRedisTTL       = time.Minute

	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultPingInterval       = 20 * time.Second
	DefaultStaleTimeout       = 40 * time.Second
	DefaultBufferSize         = 4096
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultHealthyAfter       = 30 * time.Second

	DefaultBatchSize     = 1000
	DefaultFlushInterval = 1 * time.Second

	DefaultHealthPort = 8080

	DefaultCollectorListenAddr    = ":9050"
	DefaultCollectorStatsInterval = 5 * time.Second
	DefaultCollectorHealthPort    = 8081
)

func (c *FeedConfig) applyDefaults() {
	applyPostgresDefaults(&c.Postgres)

	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultRedisTTL
	}

	if c.Connections.HandshakeTimeout == 0 {
		c.Connections.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connections.WriteTimeout == 0 {
		c.Connections.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connections.PingInterval == 0 {
		c.Connections.PingInterval = DefaultPingInterval
	}
	if c.Connections.StaleTimeout == 0 {
		c.Connections.StaleTimeout = DefaultStaleTimeout
	}
	if c.Connections.BufferSize == 0 {
		c.Connections.BufferSize = DefaultBufferSize
	}
	if c.Connections.ReconnectBaseDelay == 0 {
		c.Connections.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connections.ReconnectMaxDelay == 0 {
		c.Connections.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connections.HealthyAfter == 0 {
		c.Connections.HealthyAfter = DefaultHealthyAfter
	}

	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}

func applyPostgresDefaults(db *PostgresConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

func (c *CollectorConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultCollectorListenAddr
	}
	if c.StatsInterval == 0 {
		c.StatsInterval = DefaultCollectorStatsInterval
	}
	if c.Health.Port == 0 {
		c.Health.Port = DefaultCollectorHealthPort
	}
}
