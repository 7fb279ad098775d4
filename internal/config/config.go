package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Port                          string   `mapstructure:"PORT" validate:"required,numeric"`
	DatabasePath                  string   `mapstructure:"DATABASE_PATH" validate:"required"`
	DatabaseMaxOpenConns          int      `mapstructure:"DB_MAX_OPEN_CONNS" validate:"min=1"`
	DiscordClientID               string   `mapstructure:"DISCORD_CLIENT_ID"`
	DiscordClientSecret           string   `mapstructure:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURL            string   `mapstructure:"DISCORD_REDIRECT_URL"`
	DiscordGuildID                string   `mapstructure:"DISCORD_GUILD_ID"`
	DiscordBotToken               string   `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordNotificationsChannelID string   `mapstructure:"DISCORD_NOTIFICATIONS_CHANNEL_ID"`
	JWTSecret                     string   `mapstructure:"JWT_SECRET" validate:"required,min=16"`
	FrontendURL                   string   `mapstructure:"FRONTEND_URL"`
	EnableCORS                    bool     `mapstructure:"ENABLE_CORS"`
	CORSOrigins                   []string `mapstructure:"CORS_ORIGINS"`
	LogLevel                      string   `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat                     string   `mapstructure:"LOG_FORMAT" validate:"oneof=json console"`
	IDMaxAttempts                 int      `mapstructure:"ID_MAX_ATTEMPTS" validate:"min=1"`
	RateLimitRPS                  float64  `mapstructure:"RATE_LIMIT_RPS" validate:"gte=0"`
	RateLimitBurst                int      `mapstructure:"RATE_LIMIT_BURST" validate:"gte=0"`
	AdminName                     string   `mapstructure:"ADMIN_NAME"`
	AdminEmail                    string   `mapstructure:"ADMIN_EMAIL" validate:"omitempty,email"`
	AdminPassword                 string   `mapstructure:"ADMIN_PASSWORD" validate:"omitempty,min=8"`
}

var envKeys = []string{
	"PORT",
	"DATABASE_PATH",
	"DB_MAX_OPEN_CONNS",
	"DISCORD_CLIENT_ID",
	"DISCORD_CLIENT_SECRET",
	"DISCORD_REDIRECT_URL",
	"DISCORD_GUILD_ID",
	"DISCORD_BOT_TOKEN",
	"DISCORD_NOTIFICATIONS_CHANNEL_ID",
	"JWT_SECRET",
	"FRONTEND_URL",
	"ENABLE_CORS",
	"CORS_ORIGINS",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"ID_MAX_ATTEMPTS",
	"RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST",
	"ADMIN_NAME",
	"ADMIN_EMAIL",
	"ADMIN_PASSWORD",
}

// Load reads configuration from defaults and the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_PATH", "eventra.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 4)
	v.SetDefault("DISCORD_REDIRECT_URL", "http://127.0.0.1:8080/auth/discord/callback")
	v.SetDefault("FRONTEND_URL", "http://127.0.0.1:3000")
	v.SetDefault("CORS_ORIGINS", []string{"http://localhost:3000"})
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ID_MAX_ATTEMPTS", 10)
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("ADMIN_NAME", "Admin User")

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// viper hands comma separated env values over as a single element
	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadConfig() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Unable to load config: %v", err)
	}
	return cfg
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.AdminEmail != "" && c.AdminPassword == "" {
		return fmt.Errorf("invalid config: ADMIN_PASSWORD is required with ADMIN_EMAIL")
	}
	return nil
}

// AdminBootstrapEnabled reports whether an admin account should be ensured
// at startup.
func (c *Config) AdminBootstrapEnabled() bool {
	return c.AdminEmail != ""
}

func (c *Config) DiscordLoginEnabled() bool {
	return c.DiscordClientID != "" && c.DiscordClientSecret != ""
}
