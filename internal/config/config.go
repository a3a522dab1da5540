package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	OpenAIAPIKey     string   `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel      string   `mapstructure:"OPENAI_MODEL"`
	HederaAccountID  string   `mapstructure:"HEDERA_ACCOUNT_ID"`
	HederaPrivateKey string   `mapstructure:"HEDERA_PRIVATE_KEY"`
	HederaTopicID    string   `mapstructure:"HEDERA_TOPIC_ID"`
	AuthSecret       string   `mapstructure:"AUTH_SECRET"`
	UploadMaxBytes   int64    `mapstructure:"UPLOAD_MAX_BYTES"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "3000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("UPLOAD_MAX_BYTES", 25*1024*1024)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("OPENAI_MODEL")
	v.BindEnv("HEDERA_ACCOUNT_ID")
	v.BindEnv("HEDERA_PRIVATE_KEY")
	v.BindEnv("HEDERA_TOPIC_ID")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("UPLOAD_MAX_BYTES")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Report routes are reachable without a session token.")
		log.Println("WARNING: Set ENV=production and AUTH_SECRET before deploying.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// HederaConfigured reports whether ledger operator credentials are present.
// The topic id is optional: without it anchoring is silently skipped, but an
// upload request is still rejected when the operator credentials are absent.
func (c *Config) HederaConfigured() bool {
	return c.HederaAccountID != "" && c.HederaPrivateKey != ""
}

// Validate checks that the configuration is safe to run. Error messages name
// the missing variable but never echo secret values.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required when ENV=%q", c.Env)
	}
	if c.HederaTopicID != "" && !c.HederaConfigured() {
		return fmt.Errorf("HEDERA_ACCOUNT_ID and HEDERA_PRIVATE_KEY are required when HEDERA_TOPIC_ID is set")
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.UploadMaxBytes)
	}
	return nil
}
