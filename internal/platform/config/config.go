package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures process-level configuration. Values come from the
// environment so main stays lean.
type Config struct {
	Addr     string `env:"OIDCBRIDGE_ADDR" envDefault:":8080"`
	LogLevel string `env:"OIDCBRIDGE_LOG_LEVEL" envDefault:"info"`

	// PostgresDSN selects the durable artifact/client stores. Empty means
	// in-memory stores (dev and tests only).
	PostgresDSN string `env:"OIDCBRIDGE_POSTGRES_DSN"`

	// RedisURL, when set, switches the artifact store to Redis. Postgres
	// remains the source for the client registry.
	RedisURL string `env:"OIDCBRIDGE_REDIS_URL"`

	// KafkaBrokers enables the audit publisher when non-empty.
	KafkaBrokers []string `env:"OIDCBRIDGE_KAFKA_BROKERS" envSeparator:","`
	AuditTopic   string   `env:"OIDCBRIDGE_AUDIT_TOPIC" envDefault:"oidcbridge.audit"`

	// InteractionTTL bounds how long a login/consent result stays resumable.
	InteractionTTL time.Duration `env:"OIDCBRIDGE_INTERACTION_TTL" envDefault:"10m"`

	// JWTSigningKey protects the admin read endpoints. Override outside dev.
	JWTSigningKey string `env:"OIDCBRIDGE_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`

	ShutdownTimeout time.Duration `env:"OIDCBRIDGE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// FromEnv parses configuration from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
