package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config contains all configuration parameters for the server.
type Config struct {
	Port     string `envconfig:"PORT" default:"9000"`
	RedisURL string `envconfig:"REDIS_URL"`

	DomainTag    string        `envconfig:"DOMAIN_TAG" default:"WALLETAUTH-V0.0-user"`
	ProofMaxAge  time.Duration `envconfig:"PROOF_MAX_AGE" default:"10m"`
	ProofMaxSkew time.Duration `envconfig:"PROOF_MAX_SKEW" default:"1m"`

	ChallengeTTL time.Duration `envconfig:"CHALLENGE_TTL" default:"5m"`
	AccessTTL    time.Duration `envconfig:"ACCESS_TTL" default:"5m"`
	RefreshTTL   time.Duration `envconfig:"REFRESH_TTL" default:"120h"`

	// KeysFile is a JSON array of account keys loaded into the registry at startup
	KeysFile string `envconfig:"KEYS_FILE"`
	// KeyCacheTTL bounds how long a resolved Redis key is reused, and so how
	// late a revocation takes effect. Zero disables the cache.
	KeyCacheTTL time.Duration `envconfig:"KEY_CACHE_TTL" default:"30s"`
	// JWTKeyHex is the hex encoded P-256 scalar signing session tokens. A
	// fresh key is generated when empty.
	JWTKeyHex string `envconfig:"JWT_KEY_HEX"`
	// WalletURL enables the wallet endpoint when set
	WalletURL string `envconfig:"WALLET_URL"`

	EventsEnabled  bool   `envconfig:"EVENTS_ENABLED" default:"true"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if len(cfg.DomainTag) > 32 {
		return nil, fmt.Errorf("DOMAIN_TAG must be at most 32 bytes, got %d", len(cfg.DomainTag))
	}
	if cfg.ProofMaxAge <= 0 || cfg.ProofMaxSkew < 0 {
		return nil, fmt.Errorf("invalid proof window: max age %s, max skew %s", cfg.ProofMaxAge, cfg.ProofMaxSkew)
	}
	return cfg, nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return ":" + c.Port
}
