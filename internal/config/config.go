package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries the handful of knobs the server reads from the environment.
type Config struct {
	Addr           string
	TurnTimeout    time.Duration
	OfflineTimeout time.Duration
	SweepInterval  time.Duration
}

func Load() Config {
	return Config{
		Addr:           ":" + getEnv("PORT", "8080"),
		TurnTimeout:    getEnvDuration("TURN_TIMEOUT", 30*time.Second),
		OfflineTimeout: getEnvDuration("OFFLINE_TIMEOUT", 60*time.Second),
		SweepInterval:  getEnvDuration("ROOM_SWEEP_INTERVAL", 5*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
