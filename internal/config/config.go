// Package config loads runtime settings: built-in defaults, then an optional
// TOML file named by CONFIG_FILE, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"mines-predictor-bot/internal/models"
)

const (
	ModeWebhook = "webhook"
	ModePolling = "polling"

	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Env      string `toml:"env"`
	Port     string `toml:"port"`
	LogLevel string `toml:"log_level"`

	BotToken      string `toml:"bot_token"`
	WebhookSecret string `toml:"webhook_secret"`
	Mode          string `toml:"mode"`

	StorageDriver string `toml:"storage_driver"`
	RedisURL      string `toml:"redis_url"`
	RedisPass     string `toml:"redis_pass"`
	RedisDB       int    `toml:"redis_db"`
	DatabaseDSN   string `toml:"database_dsn"`

	AdminActivationKey string `toml:"admin_activation_key"`
	DevUsername        string `toml:"dev_username"`

	CellImageURL       string `toml:"cell_image_url"`
	DiamondImageURL    string `toml:"diamond_image_url"`
	ServerSeedGuideURL string `toml:"server_seed_guide_url"`
	BetAmountGuideURL  string `toml:"bet_amount_guide_url"`

	JWTSecret   string        `toml:"jwt_secret"`
	AdminSecret string        `toml:"admin_secret"`
	JWTExpiry   time.Duration `toml:"-"`

	// Inbound updates allowed per user per minute; 0 disables the limit.
	RateLimit int `toml:"rate_limit"`
}

// tomlDurations holds duration fields in their file form ("12h").
type tomlDurations struct {
	JWTExpiry string `toml:"jwt_expiry"`
}

func Defaults() *Config {
	return &Config{
		Env:                "development",
		Port:               "8080",
		LogLevel:           "info",
		Mode:               ModeWebhook,
		StorageDriver:      DriverRedis,
		RedisURL:           "localhost:6379",
		AdminActivationKey: models.DefaultAdminActivationKey,
		DevUsername:        "@DEVELOPERSTAKEBOT",
		CellImageURL:       "https://i.postimg.cc/dtVfWTSd/Screenshot-20250716-163347-Chrome.jpg",
		DiamondImageURL:    "https://i.postimg.cc/TYpt961H/Screenshot-20250713-204556-Lemur-Browser-removebg-preview-removebg-preview.jpg",
		ServerSeedGuideURL: "https://i.postimg.cc/LsMv2gTr/Screenshot-20250716-164325-Chrome.jpg",
		BetAmountGuideURL:  "https://i.postimg.cc/qvKQPx8s/Screenshot-20250716-164700-Chrome.jpg",
		JWTExpiry:          12 * time.Hour,
		RateLimit:          30,
	}
}

func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var d tomlDurations
	if _, err := toml.DecodeFile(path, &d); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if d.JWTExpiry != "" {
		v, err := time.ParseDuration(d.JWTExpiry)
		if err != nil {
			return fmt.Errorf("invalid jwt_expiry %q: %w", d.JWTExpiry, err)
		}
		c.JWTExpiry = v
	}

	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Env, "ENV")
	setString(&c.Port, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.BotToken, "BOT_TOKEN")
	setString(&c.WebhookSecret, "WEBHOOK_SECRET")
	setString(&c.Mode, "BOT_MODE")
	setString(&c.StorageDriver, "STORAGE_DRIVER")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.RedisPass, "REDIS_PASSWORD")
	setString(&c.DatabaseDSN, "DATABASE_URL")
	setString(&c.AdminActivationKey, "ADMIN_ACTIVATION_KEY")
	setString(&c.DevUsername, "DEV_USERNAME")
	setString(&c.CellImageURL, "CELL_IMAGE_URL")
	setString(&c.DiamondImageURL, "DIAMOND_IMAGE_URL")
	setString(&c.ServerSeedGuideURL, "SERVER_SEED_GUIDE_URL")
	setString(&c.BetAmountGuideURL, "BET_AMOUNT_GUIDE_URL")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.AdminSecret, "ADMIN_SECRET")

	if err := setInt(&c.RedisDB, "REDIS_DB"); err != nil {
		return err
	}
	if err := setInt(&c.RateLimit, "RATE_LIMIT"); err != nil {
		return err
	}

	if v := os.Getenv("JWT_EXPIRY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_EXPIRY %q: %w", v, err)
		}
		c.JWTExpiry = d
	}

	return nil
}

func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}

	switch c.Mode {
	case ModeWebhook:
		if c.WebhookSecret == "" {
			return fmt.Errorf("WEBHOOK_SECRET is required in webhook mode")
		}
	case ModePolling:
	default:
		return fmt.Errorf("invalid bot mode: %s", c.Mode)
	}

	switch c.StorageDriver {
	case DriverRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis driver")
		}
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid storage driver: %s", c.StorageDriver)
	}

	if c.AdminActivationKey == "" {
		return fmt.Errorf("admin activation key must not be empty")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}

	return nil
}

// PurchaseURL is the link shown next to the invalid-key message.
func (c *Config) PurchaseURL() string {
	name := c.DevUsername
	if len(name) > 0 && name[0] == '@' {
		name = name[1:]
	}
	return "https://t.me/" + name
}

// AdminAPIEnabled reports whether the JWT-protected admin routes are mounted.
func (c *Config) AdminAPIEnabled() bool {
	return c.JWTSecret != "" && c.AdminSecret != ""
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}
