package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env           string        `yaml:"env" env:"APP_ENV" env-default:"local"`
	Address       string        `yaml:"address" env:"LISTEN_ADDR" env-default:":8080"`
	JWTSecret     string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"dev-jwt-secret-change-me"`
	CredentialTTL time.Duration `yaml:"credential_ttl" env:"CREDENTIAL_TTL" env-default:"12h"`
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RateLimit     int           `yaml:"rate_limit" env:"RATE_LIMIT" env-default:"3"`
	RateWindow    time.Duration `yaml:"rate_window" env:"RATE_WINDOW" env-default:"1h"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL" env-default:"5m"`
}

// MustLoadConfig reads a YAML file when a path is given, falling back to
// environment variables otherwise.
func MustLoadConfig(configPath string) *Config {
	var cfg Config
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			panic("config file not found")
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
		return &cfg
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return &cfg
}
