package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	FrontendURL       string        `mapstructure:"frontend_url" yaml:"frontend_url"`

	Store StoreConfig `mapstructure:"store" yaml:"store"`
	JWT   JWTConfig   `mapstructure:"jwt" yaml:"jwt"`
	WS    WSConfig    `mapstructure:"ws" yaml:"ws"`
	Media MediaConfig `mapstructure:"media" yaml:"media"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver        string `mapstructure:"driver" yaml:"driver"` // "sqlite" or "mongo"
	SQLitePath    string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	MongoURI      string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database"`
}

// JWTConfig configures token issuance for the REST API and the live channel.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// WSConfig configures the live channel endpoint.
type WSConfig struct {
	// RequireToken rejects handshakes that carry only a userId.
	RequireToken bool `mapstructure:"require_token" yaml:"require_token"`
	// OutboxSize is the per-channel event buffer; events beyond it are dropped.
	OutboxSize int `mapstructure:"outbox_size" yaml:"outbox_size"`
	// InboundLimit caps client frames per minute before the channel is closed. 0 disables it.
	InboundLimit int `mapstructure:"inbound_limit" yaml:"inbound_limit"`
}

// MediaConfig configures object storage for image payloads.
// Uploads are disabled while Endpoint is empty.
type MediaConfig struct {
	Endpoint      string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey     string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey     string `mapstructure:"secret_key" yaml:"secret_key"`
	Bucket        string `mapstructure:"bucket" yaml:"bucket"`
	UseSSL        bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":5000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		MaxMessageBytes:   4 << 20,
		FrontendURL:       "http://localhost:5173",
		Store: StoreConfig{
			Driver:        "sqlite",
			SQLitePath:    "pairchat.db",
			MongoDatabase: "pairchat",
		},
		JWT: JWTConfig{
			Secret:   "change-me",
			Issuer:   "pairchat",
			Audience: "pairchat",
			TTL:      7 * 24 * time.Hour,
		},
		WS: WSConfig{
			RequireToken: true,
			OutboxSize:   16,
			InboundLimit: 60,
		},
		Media: MediaConfig{
			Bucket: "pairchat-images",
		},
	}
}

// UpdateFrom overwrites non-zero top-level values from other config into receiver.
// Used for CLI flag overrides.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
	if other.Store.SQLitePath != "" {
		c.Store.SQLitePath = other.Store.SQLitePath
	}
}
