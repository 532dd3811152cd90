package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App      AppSettings      `mapstructure:"app"`
	Postgres PostgresSettings `mapstructure:"postgres"`
	Redis    RedisSettings    `mapstructure:"redis"`
	Kafka    KafkaSettings    `mapstructure:"kafka"`
	JWT      JWTSettings      `mapstructure:"jwt"`
	Argon2   Argon2Settings   `mapstructure:"argon2"`
	Sessions SessionSettings  `mapstructure:"sessions"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection backing the MFA store.
type RedisSettings struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	ChallengePrefix string `mapstructure:"challenge_prefix"`
}

// KafkaSettings configures the audit event producer.
type KafkaSettings struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// JWTSettings holds the HMAC signing secret for session tokens. Lifetimes are
// tunable at runtime through the persisted security config, not here.
type JWTSettings struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// Argon2Settings configures Argon2id password hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// SessionSettings carries the per-role concurrency caps and the client-class
// policy mapping named non-browser clients to the long-lived token class.
type SessionSettings struct {
	CustomerCap       int           `mapstructure:"customer_cap"`
	AdminCap          int           `mapstructure:"admin_cap"`
	LongLivedClients  []string      `mapstructure:"long_lived_clients"`
	LongLivedLifetime time.Duration `mapstructure:"long_lived_lifetime"`
	CookieName        string        `mapstructure:"cookie_name"`
	CookieSecure      bool          `mapstructure:"cookie_secure"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTH")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.challenge_prefix",
		"kafka.brokers",
		"kafka.topic",
		"jwt.secret",
		"jwt.issuer",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"sessions.customer_cap",
		"sessions.admin_cap",
		"sessions.long_lived_clients",
		"sessions.long_lived_lifetime",
		"sessions.cookie_name",
		"sessions.cookie_secure",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "commerce-auth")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "auth")
	v.SetDefault("postgres.password", "auth_password")
	v.SetDefault("postgres.database", "auth")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.challenge_prefix", "auth:mfa")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "auth.audit")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "commerce-auth")

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("sessions.customer_cap", 5)
	v.SetDefault("sessions.admin_cap", 2)
	v.SetDefault("sessions.long_lived_clients", []string{"mobile-app", "partner-api"})
	v.SetDefault("sessions.long_lived_lifetime", "720h")
	v.SetDefault("sessions.cookie_name", "auth_token")
	v.SetDefault("sessions.cookie_secure", true)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "AUTH_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
