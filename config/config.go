// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// StoreDriver selects the persistence backend.
type StoreDriver string

const (
	StorePostgres StoreDriver = "postgres"
	StoreMemory   StoreDriver = "memory"
)

// HTTPConfig is the configuration of the REST server.
type HTTPConfig struct {
	// ListenAddr is the address the server listens on.
	ListenAddr string `env:"LISTEN_ADDR"`

	// GatewayToken is the bearer token the API gateway presents on every request.
	GatewayToken string `env:"GATEWAY_TOKEN"`

	// AllowedOrigins are the CORS origins.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// BodyLimit is the maximum request body in bytes.
	BodyLimit int `env:"BODY_LIMIT"`
}

// DatabaseConfig is the postgres connection configuration.
type DatabaseConfig struct {
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME"`
}

// BlobConfig configures the S3 compatible object store.
type BlobConfig struct {
	// Provider is "s3" or "memory".
	Provider        string `env:"PROVIDER"`
	Endpoint        string `env:"ENDPOINT"`
	Region          string `env:"REGION"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	AccessKeySecret string `env:"ACCESS_KEY_SECRET"`
	Bucket          string `env:"BUCKET"`

	// PublicURL is prefixed to object keys to build download links.
	PublicURL string `env:"PUBLIC_URL"`
}

// RedisConfig enables the distributed job lock when Addr is set.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"`
}

// ZltoConfig configures the reward and marketplace provider.
type ZltoConfig struct {
	BaseURL    string        `env:"BASE_URL"`
	APIKey     string        `env:"API_KEY"`
	PartnerID  string        `env:"PARTNER_ID"`
	Timeout    time.Duration `env:"TIMEOUT"`
	MaxRetries uint          `env:"MAX_RETRIES"`
}

// SSIConfig configures the credential issuing provider.
type SSIConfig struct {
	BaseURL    string        `env:"BASE_URL"`
	APIKey     string        `env:"API_KEY"`
	Timeout    time.Duration `env:"TIMEOUT"`
	MaxRetries uint          `env:"MAX_RETRIES"`
}

// JobsConfig configures the background jobs.
type JobsConfig struct {
	Enabled            bool          `env:"ENABLED"`
	RewardInterval     time.Duration `env:"REWARD_INTERVAL"`
	WalletInterval     time.Duration `env:"WALLET_INTERVAL"`
	CredentialInterval time.Duration `env:"CREDENTIAL_INTERVAL"`
	ExpiryInterval     time.Duration `env:"EXPIRY_INTERVAL"`
	BatchSize          int           `env:"BATCH_SIZE"`

	// MaxRetries bounds how often an errored ledger record is retried.
	MaxRetries int           `env:"MAX_RETRIES"`
	LockTTL    time.Duration `env:"LOCK_TTL"`
}

// CacheConfig configures the lookup cache.
type CacheConfig struct {
	Size int           `env:"SIZE"`
	TTL  time.Duration `env:"TTL"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Dev switches to a human readable console writer at debug level.
	Dev bool `env:"DEV"`
}

// Config is the service configuration.
type Config struct {
	Store StoreDriver `env:"STORE"`

	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
	Database DatabaseConfig `envPrefix:"DATABASE_"`
	Blob     BlobConfig     `envPrefix:"BLOB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Zlto     ZltoConfig     `envPrefix:"ZLTO_"`
	SSI      SSIConfig      `envPrefix:"SSI_"`
	Jobs     JobsConfig     `envPrefix:"JOBS_"`
	Cache    CacheConfig    `envPrefix:"CACHE_"`
	Log      LogConfig      `envPrefix:"LOG_"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Store: StorePostgres,
		HTTP: HTTPConfig{
			ListenAddr:     ":5200",
			AllowedOrigins: []string{"http://localhost:3000"},
			BodyLimit:      50 * 1024 * 1024,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Blob: BlobConfig{
			Provider: "s3",
			Region:   "auto",
		},
		Zlto: ZltoConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		SSI: SSIConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Jobs: JobsConfig{
			Enabled:            true,
			RewardInterval:     time.Minute,
			WalletInterval:     time.Minute,
			CredentialInterval: time.Minute,
			ExpiryInterval:     time.Hour,
			BatchSize:          100,
			MaxRetries:         5,
			LockTTL:            5 * time.Minute,
		},
		Cache: CacheConfig{
			Size: 256,
			TTL:  10 * time.Minute,
		},
	}
}

// Load reads an optional .env file and parses the environment over the
// defaults. The result is validated.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if err := cfg.ParseEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv overrides c with environment variables, then applies defaults
// and validates.
func (c *Config) ParseEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse environment variables: %w", err)
	}
	c.ApplyDefaults()
	return c.Validate()
}

// ApplyDefaults replaces unset or nonsensical values with defaults.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()

	if c.Store == "" {
		c.Store = def.Store
	}
	c.Store = StoreDriver(strings.ToLower(string(c.Store)))
	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = def.HTTP.ListenAddr
	}
	if c.HTTP.BodyLimit <= 0 {
		c.HTTP.BodyLimit = def.HTTP.BodyLimit
	}
	origins := c.HTTP.AllowedOrigins[:0]
	for _, o := range c.HTTP.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.HTTP.AllowedOrigins = origins
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = def.HTTP.AllowedOrigins
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = def.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = def.Database.MaxIdleConns
	}
	if c.Blob.Provider == "" {
		c.Blob.Provider = def.Blob.Provider
	}
	if c.Blob.Region == "" {
		c.Blob.Region = def.Blob.Region
	}
	if c.Zlto.Timeout <= 0 {
		c.Zlto.Timeout = def.Zlto.Timeout
	}
	if c.SSI.Timeout <= 0 {
		c.SSI.Timeout = def.SSI.Timeout
	}
	if c.Jobs.BatchSize <= 0 {
		c.Jobs.BatchSize = def.Jobs.BatchSize
	}
	if c.Jobs.MaxRetries <= 0 {
		c.Jobs.MaxRetries = def.Jobs.MaxRetries
	}
	if c.Jobs.LockTTL <= 0 {
		c.Jobs.LockTTL = def.Jobs.LockTTL
	}
	for _, d := range []struct{ v, def *time.Duration }{
		{&c.Jobs.RewardInterval, &def.Jobs.RewardInterval},
		{&c.Jobs.WalletInterval, &def.Jobs.WalletInterval},
		{&c.Jobs.CredentialInterval, &def.Jobs.CredentialInterval},
		{&c.Jobs.ExpiryInterval, &def.Jobs.ExpiryInterval},
	} {
		if *d.v <= 0 {
			*d.v = *d.def
		}
	}
	if c.Cache.Size <= 0 {
		c.Cache.Size = def.Cache.Size
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = def.Cache.TTL
	}
}

// Validate checks that the required values are present.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store {
	case StorePostgres:
		if c.Database.URL == "" {
			problems = append(problems, "DATABASE_URL is required for the postgres store")
		}
	case StoreMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown STORE %q", c.Store))
	}

	if c.HTTP.GatewayToken == "" {
		problems = append(problems, "HTTP_GATEWAY_TOKEN is required")
	}
	// CORS runs with credentials, which can not be combined with a wildcard.
	if slices.Contains(c.HTTP.AllowedOrigins, "*") {
		problems = append(problems, "HTTP_ALLOWED_ORIGINS can not contain '*'")
	}

	switch c.Blob.Provider {
	case "s3":
		if c.Blob.Bucket == "" || c.Blob.Endpoint == "" {
			problems = append(problems, "BLOB_BUCKET and BLOB_ENDPOINT are required for the s3 provider")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("unknown BLOB_PROVIDER %q", c.Blob.Provider))
	}

	if c.Zlto.BaseURL == "" {
		problems = append(problems, "ZLTO_BASE_URL is required")
	}
	if c.SSI.BaseURL == "" {
		problems = append(problems, "SSI_BASE_URL is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
