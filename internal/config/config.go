package config

import "time"

// FeedConfig is the root configuration for a feed instance.
type FeedConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Exchanges   []ExchangeConfig  `yaml:"exchanges"`
	Publish     PublishConfig     `yaml:"publish"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Redis       RedisConfig       `yaml:"redis"`
	Connections ConnectionsConfig `yaml:"connections"`
	Writers     WritersConfig     `yaml:"writers"`
	Health      HealthConfig      `yaml:"health"`
}

// InstanceConfig identifies this feed process.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ExchangeConfig holds one exchange's market subscriptions.
type ExchangeConfig struct {
	Name    string       `yaml:"name"`
	Spot    MarketConfig `yaml:"spot"`
	Futures MarketConfig `yaml:"futures"`
}

// MarketConfig holds subscription settings for one market of one exchange.
// Symbols may be inline, loaded from a file, or both; the lists are merged.
type MarketConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Symbols     []string `yaml:"symbols"`
	SymbolsFile string   `yaml:"symbols_file"`
}

// PublishConfig holds downstream publisher settings.
type PublishConfig struct {
	UDPAddr string `yaml:"udp_addr"` // Empty disables the UDP publisher
	Stdout  bool   `yaml:"stdout"`   // Log every tick at debug level
}

// PostgresConfig holds the latest-price database connection.
type PostgresConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the price cache connection.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// ConnectionsConfig holds WebSocket supervisor settings.
type ConnectionsConfig struct {
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	StaleTimeout       time.Duration `yaml:"stale_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	HealthyAfter       time.Duration `yaml:"healthy_after"`
}

// WritersConfig holds price writer settings.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// HealthConfig holds the health HTTP endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// CollectorConfig is the root configuration for a collector instance.
type CollectorConfig struct {
	ListenAddr    string        `yaml:"listen_addr"`
	StatsInterval time.Duration `yaml:"stats_interval"`
	Health        HealthConfig  `yaml:"health"`
}
