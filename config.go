package main

import (
	"fmt"

	jlconfig "github.com/JeremyLoy/config"
)

// Config is the process configuration, loaded from the environment.
type Config struct {
	Port                  string `config:"PORT"`
	ClientURL             string `config:"CLIENT_URL"`
	AuthSecret            string `config:"AUTH_SECRET"`
	StoreBackend          string `config:"STORE_BACKEND"` // redis, dynamo, or memory
	RedisURL              string `config:"REDIS_URL"`
	DynamoTable           string `config:"DYNAMO_TABLE"`
	LiveKitTokenServerURL string `config:"LIVEKIT_TOKEN_SERVER_URL"`
	MatchExpireTime       int    `config:"MATCH_EXPIRE_TIME"` // seconds
	LogLevel              string `config:"LOG_LEVEL"`
}

// LoadConfig reads the environment and applies defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:            "8080",
		StoreBackend:    "redis",
		RedisURL:        "redis://localhost:6379",
		DynamoTable:     "DiscoMatchmaking",
		MatchExpireTime: 30,
		LogLevel:        "info",
	}
	if err := jlconfig.FromEnv().To(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.AuthSecret == "" {
		return Config{}, fmt.Errorf("AUTH_SECRET is required")
	}
	if cfg.LiveKitTokenServerURL == "" {
		return Config{}, fmt.Errorf("LIVEKIT_TOKEN_SERVER_URL is required")
	}
	return cfg, nil
}
