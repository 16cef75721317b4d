// Package config loads service configuration with cleanenv.
// Priority: ENV > yaml file > struct defaults. The file path comes from
// CONFIG_PATH (fallback "./config.yaml"); a missing default file is fine.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Incentive IncentiveConfig `yaml:"incentive"`
	Seed      SeedConfig      `yaml:"seed"`
	LogLevel  string          `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"SANITRACK_ADDR" env-default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type DatabaseConfig struct {
	// URL is a postgres DSN. Empty means run on in-memory stores
	// (development and tests only).
	URL         string        `yaml:"url" env:"DATABASE_URL"`
	TxTimeout   time.Duration `yaml:"tx_timeout" env:"DATABASE_TX_TIMEOUT" env-default:"5s"`
	AutoMigrate bool          `yaml:"auto_migrate" env:"DATABASE_AUTO_MIGRATE" env-default:"true"`
}

type RedisConfig struct {
	// URL is a redis connection URL. Empty means OTP codes are kept in
	// process memory (development and tests only).
	URL string `yaml:"url" env:"REDIS_URL"`
}

type AuthConfig struct {
	JWTSigningKey  string        `yaml:"jwt_signing_key" env:"JWT_SIGNING_KEY" env-default:"dev-secret-change-in-production"`
	JWTIssuer      string        `yaml:"jwt_issuer" env:"JWT_ISSUER" env-default:"sanitrack"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"24h"`
	OTPTTL         time.Duration `yaml:"otp_ttl" env:"OTP_TTL" env-default:"5m"`
}

type IncentiveConfig struct {
	// PointsPerVerifiedReport is the reward policy constant applied on
	// approval. Tunable, not derived from report content.
	PointsPerVerifiedReport int `yaml:"points_per_verified_report" env:"POINTS_PER_VERIFIED_REPORT" env-default:"10"`
}

type SeedConfig struct {
	// AdminPhone and OfficerPhone provision privileged accounts at startup.
	// OTP login only ever creates citizens, so deployments name their staff
	// here (or manage roles directly in the database).
	AdminPhone   string `yaml:"admin_phone" env:"SEED_ADMIN_PHONE"`
	OfficerPhone string `yaml:"officer_phone" env:"SEED_OFFICER_PHONE"`
}

func (c *Config) Validate() error {
	if c.Incentive.PointsPerVerifiedReport <= 0 {
		return fmt.Errorf("points_per_verified_report must be positive")
	}
	if c.Auth.JWTSigningKey == "" {
		return fmt.Errorf("jwt_signing_key is required")
	}
	return nil
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	explicitPath := path != ""
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}
