package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env  string
	Port string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret string

	// Round timing. Fixed once a round starts; nothing can shorten or
	// extend a running phase.
	BettingTime time.Duration
	SpinTime    time.Duration

	// Upper bound on a single bet transaction before it is rejected
	// with a timeout instead of blocking the session.
	BetTimeout time.Duration

	// Starting balance for newly created wallets, in cents.
	StartingBalance int64
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:             getEnv("ENV", "development"),
		Port:            getEnv("PORT", "8080"),
		RedisURL:        getEnv("REDIS_URL", "localhost:6379"),
		RedisPass:       getEnv("REDIS_PASSWORD", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		BettingTime:     15 * time.Second,
		SpinTime:        3 * time.Second,
		BetTimeout:      5 * time.Second,
		StartingBalance: 10000, // $100.00
	}

	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %v", err)
	}
	cfg.RedisDB = db

	if v := os.Getenv("BETTING_TIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BETTING_TIME: %v", err)
		}
		cfg.BettingTime = d
	}

	if v := os.Getenv("SPIN_TIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SPIN_TIME: %v", err)
		}
		cfg.SpinTime = d
	}

	if v := os.Getenv("STARTING_BALANCE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid STARTING_BALANCE: %v", err)
		}
		cfg.StartingBalance = n
	}

	if cfg.JWTSecret == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-secret-do-not-use-in-production"
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
