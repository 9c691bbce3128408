package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates the server's settings, all sourced from environment
// variables (a .env file is loaded by the entrypoint).
type Config struct {
	Addr               string
	PairWindow         time.Duration
	FinalWindowSeconds int
	AgentDelay         time.Duration
}

func Load() (*Config, error) {
	addr, err := loadAddr()
	if err != nil {
		return nil, err
	}

	pairWindow, err := loadDuration("PAIR_WINDOW", 3*time.Second)
	if err != nil {
		return nil, err
	}

	agentDelay, err := loadDuration("AGENT_DELAY", time.Second)
	if err != nil {
		return nil, err
	}

	finalWindow, err := loadInt("FINAL_WINDOW_SEC", 30)
	if err != nil {
		return nil, err
	}
	if finalWindow < 1 {
		return nil, fmt.Errorf("FINAL_WINDOW_SEC must be positive, got %d", finalWindow)
	}

	return &Config{
		Addr:               addr,
		PairWindow:         pairWindow,
		FinalWindowSeconds: finalWindow,
		AgentDelay:         agentDelay,
	}, nil
}

func loadAddr() (string, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return port, nil
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	return ":" + port, nil
}

func loadDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return d, nil
}

func loadInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return n, nil
}
