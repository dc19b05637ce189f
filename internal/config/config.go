package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config is the environment-driven configuration for the platform core.
type Config struct {
	Port     string `env:"PORT,      default=3000"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// Gateway names the calling subsystem on outbound internal calls.
	Gateway string `env:"GATEWAY_NAME, default=discord"`

	JWT   JWTConfig
	Redis RedisConfig

	AckTimeout time.Duration `env:"ACK_TIMEOUT, default=10s"`
}

// JWTConfig locates the RS256 key material and sets token lifetimes.
// PrivateKeyPath may be empty for processes that only verify.
type JWTConfig struct {
	PublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH"`
	PrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH"`
	TokenTTL       time.Duration `env:"JWT_TOKEN_TTL,      default=1h"`
	RefreshWindow  time.Duration `env:"JWT_REFRESH_WINDOW, default=5m"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
