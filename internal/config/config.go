package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultAppName        = "MoneyFlow"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
)

// Config captures application runtime configuration loaded from the
// environment and an optional .env file.
type Config struct {
	AppName   string
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	DatabaseURL    string
	MigrateOnStart bool
	RedisURL       string
	KafkaBrokers   []string
	KafkaTopic     string
	JWTSecret      string

	ShutdownPeriod     time.Duration
	IdempotencyTTL     time.Duration
	RailTimeout        time.Duration
	RailLatency        time.Duration
	OutboxInterval     time.Duration
	SweepInterval      time.Duration
	StaleTransferAfter time.Duration
	WalletMaxRetries   int
}

// Load reads configuration values. Real environment variables win over .env.
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()
	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("LOG_FORMAT", defaultLogFormat)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MIGRATE_ON_START", true)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "moneyflow.events")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SHUTDOWN_TIMEOUT", defaultShutdownDelay.String())
	v.SetDefault("IDEMPOTENCY_TTL", defaultIdempotencyTTL.String())
	v.SetDefault("RAIL_TIMEOUT", "30s")
	v.SetDefault("RAIL_LATENCY", "200ms")
	v.SetDefault("OUTBOX_INTERVAL", "1s")
	v.SetDefault("SWEEP_INTERVAL", "1m")
	v.SetDefault("STALE_TRANSFER_AFTER", "5m")
	v.SetDefault("WALLET_MAX_RETRIES", 5)
	v.AutomaticEnv()

	cfg := Config{
		AppName:        v.GetString("APP_NAME"),
		AppEnv:         strings.ToLower(v.GetString("APP_ENV")),
		Port:           v.GetString("PORT"),
		LogLevel:       strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:      strings.ToLower(v.GetString("LOG_FORMAT")),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		MigrateOnStart: v.GetBool("MIGRATE_ON_START"),
		RedisURL:       v.GetString("REDIS_URL"),
		KafkaBrokers:   splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:     v.GetString("KAFKA_TOPIC"),
		JWTSecret:      v.GetString("JWT_SECRET"),
	}

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownPeriod},
		{"IDEMPOTENCY_TTL", &cfg.IdempotencyTTL},
		{"RAIL_TIMEOUT", &cfg.RailTimeout},
		{"RAIL_LATENCY", &cfg.RailLatency},
		{"OUTBOX_INTERVAL", &cfg.OutboxInterval},
		{"SWEEP_INTERVAL", &cfg.SweepInterval},
		{"STALE_TRANSFER_AFTER", &cfg.StaleTransferAfter},
	}
	for _, d := range durations {
		if *d.dst, err = duration(v, d.key); err != nil {
			return Config{}, err
		}
	}

	cfg.WalletMaxRetries = v.GetInt("WALLET_MAX_RETRIES")
	if cfg.WalletMaxRetries <= 0 {
		return Config{}, fmt.Errorf("invalid WALLET_MAX_RETRIES: must be positive")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsDev reports whether in-memory stores are allowed.
func (c Config) IsDev() bool {
	switch c.AppEnv {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.IsDev() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	return nil
}

// duration accepts Go durations ("30s") or a bare number of seconds.
func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, convErr := time.ParseDuration(raw + "s")
		if convErr != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		d = secs
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration", key)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
