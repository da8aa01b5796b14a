// Package config carries the environment-driven settings of the terminal
// client and the tuning constants shared by its background loops.
package config

import (
	"os"
	"time"
)

// Defaults target a locally running devserver.
const (
	DefaultAPIBaseURL = "http://localhost:8080/api"
	DefaultSocketURL  = "ws://localhost:8080/ws"
)

// Token refresh policy: the client refreshes proactively whenever the token
// is within RefreshLeeway of expiry, checked every RefreshCheckInterval.
const (
	RefreshCheckInterval = time.Minute
	RefreshLeeway        = 5 * time.Minute
)

type Config struct {
	APIBaseURL string
	SocketURL  string
	Name       string
	Email      string
	Password   string
}

// Load reads the configuration from the environment. godotenv is expected
// to have populated it from .env beforehand.
func Load() Config {
	return Config{
		APIBaseURL: getenv("CHAT_API_URL", DefaultAPIBaseURL),
		SocketURL:  getenv("CHAT_WS_URL", DefaultSocketURL),
		Name:       os.Getenv("CHAT_NAME"),
		Email:      os.Getenv("CHAT_EMAIL"),
		Password:   os.Getenv("CHAT_PASSWORD"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
