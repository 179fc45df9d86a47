// Package config loads the stories server configuration.
//
// Values are layered, later layers winning:
//
//  1. built-in defaults (defaultConfig)
//  2. an optional YAML file: $CONFIG_PATH, else the first of
//     DefaultConfigPaths that exists
//  3. environment variables with the STORIES_ prefix
//
// Environment names map to keys by dropping the prefix, lowercasing and
// turning the first underscore into a dot:
//
//	STORIES_SERVER_ADDR        -> server.addr
//	STORIES_API_BASE_URL       -> api.base_url
//	STORIES_STORAGE_CACHE_TTL  -> storage.cache_ttl
package config

import (
	"time"
)

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	API     APIConfig     `koanf:"api"`
	Storage StorageConfig `koanf:"storage"`
	UI      UIConfig      `koanf:"ui"`
	Limits  LimitsConfig  `koanf:"limits"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig configures the HTTP listener and browser sessions.
type ServerConfig struct {
	Addr     string `koanf:"addr" validate:"required"`
	BasePath string `koanf:"base_path" validate:"required,startswith=/"`

	// CookieKey signs session cookies. When empty a random key is
	// generated at startup and sessions do not survive a restart.
	CookieKey    string `koanf:"cookie_key" validate:"omitempty,min=16"`
	SecureCookie bool   `koanf:"secure_cookie"`
	SealCookie   bool   `koanf:"seal_cookie"`

	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	SweepInterval   time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	SlotTimeout     time.Duration `koanf:"slot_timeout" validate:"gt=0"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// APIConfig configures the remote story API client.
type APIConfig struct {
	BaseURL  string        `koanf:"base_url" validate:"required,url"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
	PageSize int           `koanf:"page_size" validate:"gte=1,lte=100"`

	// BreakerFailures consecutive network failures open the circuit for
	// BreakerTimeout.
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// StorageConfig configures the badger database holding auth records and
// the offline story cache. An empty Path keeps everything in memory.
type StorageConfig struct {
	Path     string        `koanf:"path"`
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"gt=0"`
}

// UIConfig configures presentation.
type UIConfig struct {
	Language     string `koanf:"language" validate:"oneof=id-ID en"`
	VAPIDKey     string `koanf:"vapid_key"`
	MaxPhotoSize int64  `koanf:"max_photo_size" validate:"gte=1"`
	StagingDir   string `koanf:"staging_dir"`
}

// LimitsConfig configures rate limiting of the auth actions.
type LimitsConfig struct {
	AuthRequests int           `koanf:"auth_requests" validate:"gte=0"`
	AuthWindow   time.Duration `koanf:"auth_window" validate:"gt=0"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			BasePath:        "/_",
			IdleTimeout:     30 * time.Minute,
			SweepInterval:   time.Minute,
			SlotTimeout:     25 * time.Second,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    45 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		API: APIConfig{
			BaseURL:         "https://story-api.dicoding.dev/v1",
			Timeout:         15 * time.Second,
			PageSize:        20,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Storage: StorageConfig{
			CacheTTL: 24 * time.Hour,
		},
		UI: UIConfig{
			Language:     "id-ID",
			VAPIDKey:     "BCCs2eonMI-6H2ctvFaWg-UYdDv387Vno_bzUzALpB442r2lCnsHmtrx8biyPi_E-1fSGABK_Qs_GlvPoJJqxbk",
			MaxPhotoSize: 1 << 20,
		},
		Limits: LimitsConfig{
			AuthRequests: 10,
			AuthWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the built-in configuration, before any file or
// environment overrides.
func Default() *Config {
	return defaultConfig()
}
