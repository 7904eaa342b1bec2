package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/mc-fdc-dev/modmail/pkg/util/errorutil"
)

// Config aggregates runtime configuration for the bridge.
type Config struct {
	App       AppConfig
	Discord   DiscordConfig
	Workspace WorkspaceConfig
	Ticket    TicketConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
}

// AppConfig controls process level behavior and the optional admin HTTP server.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	HTTPEnabled           bool
	RequestTimeoutSeconds int
}

// DiscordConfig holds the bot credential.
type DiscordConfig struct {
	Token string
}

// WorkspaceConfig identifies the staff guild and the category holding ticket channels.
// It is read once at startup and never mutated.
type WorkspaceConfig struct {
	GuildID          string
	CategoryID       string
	StaffDisplayName string
	Locale           string
}

// TicketConfig tunes find-or-create serialization.
type TicketConfig struct {
	PendingTTLSeconds  int
	ProvisionLockTTLMs int
}

// PostgresConfig holds DB connection values for the audit trail.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines admin API authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	AdminPasswordHash     string
}

// Load reads configuration from environment variables, applying defaults where possible.
// DISCORD_TOKEN, GUILD_ID and CATEGORY_ID are required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := strings.TrimSpace(os.Getenv("DISCORD_TOKEN"))
	if token == "" {
		return nil, apperrors.NewConfigError("DISCORD_TOKEN", errors.New("not set"))
	}
	guildID, err := requireSnowflake("GUILD_ID")
	if err != nil {
		return nil, err
	}
	categoryID, err := requireSnowflake("CATEGORY_ID")
	if err != nil {
		return nil, err
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, apperrors.NewConfigError("REDIS_DB", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "modmail"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			HTTPEnabled:           getEnvAsBool("HTTP_ENABLED", false),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Discord: DiscordConfig{
			Token: token,
		},
		Workspace: WorkspaceConfig{
			GuildID:          guildID,
			CategoryID:       categoryID,
			StaffDisplayName: getEnv("STAFF_DISPLAY_NAME", "Staff"),
			Locale:           getEnv("DEFAULT_LOCALE", "en"),
		},
		Ticket: TicketConfig{
			PendingTTLSeconds:  getEnvAsInt("TICKET_PENDING_TTL_SECONDS", 60),
			ProvisionLockTTLMs: getEnvAsInt("TICKET_PROVISION_LOCK_TTL_MS", 10000),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 5)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      os.Getenv("REDIS_ADDR"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "modmail"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             strings.TrimSpace(os.Getenv("AUTH_JWT_SECRET")),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			AdminPasswordHash:     os.Getenv("ADMIN_PASSWORD_HASH"),
		},
	}

	if cfg.App.HTTPEnabled {
		if err := validateJWTSecret(cfg.Auth.JWTSecret); err != nil {
			return nil, apperrors.NewConfigError("AUTH_JWT_SECRET", err)
		}
	}

	return cfg, nil
}

// insecureJWTSecrets are placeholder values that must never sign admin tokens.
var insecureJWTSecrets = map[string]bool{
	"dev-secret": true,
	"secret":     true,
	"changeme":   true,
}

func validateJWTSecret(secret string) error {
	if secret == "" {
		return errors.New("must be set when HTTP_ENABLED is true")
	}
	if insecureJWTSecrets[strings.ToLower(secret)] {
		return errors.New("placeholder value is not allowed")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// PendingTTL is how long a freshly provisioned channel is remembered before the mirror sees it.
func (t TicketConfig) PendingTTL() time.Duration {
	if t.PendingTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(t.PendingTTLSeconds) * time.Second
}

// ProvisionLockTTL is the expiry of a cross-replica provisioning lock. The holder refreshes
// it while provisioning, so it bounds crash recovery and how long a waiting replica waits
// before giving up, not the duration of the create call.
func (t TicketConfig) ProvisionLockTTL() time.Duration {
	if t.ProvisionLockTTLMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(t.ProvisionLockTTLMs) * time.Millisecond
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

func requireSnowflake(key string) (string, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return "", apperrors.NewConfigError(key, errors.New("not set"))
	}
	if !IsSnowflake(val) {
		return "", apperrors.NewConfigError(key, fmt.Errorf("%q is not a snowflake id", val))
	}
	return val, nil
}

// IsSnowflake reports whether s is a non-zero unsigned 64-bit decimal ID.
func IsSnowflake(s string) bool {
	id, err := strconv.ParseUint(s, 10, 64)
	return err == nil && id != 0
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
