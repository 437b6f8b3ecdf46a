// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all tunable thresholds for the party service. Every value can be
// overridden through an environment variable; the defaults match observed
// production behavior and the anti-cheat calibration.
type Config struct {
	// MinMatchDuration is the shortest plausible wall-clock duration for a
	// completed match. Results reported faster than this are flagged.
	MinMatchDuration time.Duration

	// RateLimitWindow / RateLimitMaxMessages bound how many messages a single
	// sender may submit inside a sliding window before throttling.
	RateLimitWindow      time.Duration
	RateLimitMaxMessages int

	// BurstWindow / BurstMaxMessages catch short spikes inside the larger window.
	BurstWindow      time.Duration
	BurstMaxMessages int

	// HighRiskThreshold is the accumulated risk score at which a player is
	// considered high risk. A HIGH violation scores 3, MEDIUM 2, LOW 1; five
	// consecutive HIGH violations trip the default threshold.
	HighRiskThreshold int

	// MaxChatLength bounds a single chat message.
	MaxChatLength int

	// ChatHistoryLimit bounds the per-lobby retained chat history.
	ChatHistoryLimit int

	// SessionMaxAge is how long an untouched player session survives before the
	// housekeeping sweep expires it.
	SessionMaxAge time.Duration
}

// Load builds a Config from environment variables, falling back to defaults.
func Load() *Config {
	return &Config{
		MinMatchDuration:     getEnvDuration("MIN_MATCH_DURATION", 10*time.Second),
		RateLimitWindow:      getEnvDuration("RATE_LIMIT_WINDOW", 10*time.Second),
		RateLimitMaxMessages: getEnvInt("RATE_LIMIT_MAX_MESSAGES", 30),
		BurstWindow:          getEnvDuration("BURST_WINDOW", time.Second),
		BurstMaxMessages:     getEnvInt("BURST_MAX_MESSAGES", 10),
		HighRiskThreshold:    getEnvInt("HIGH_RISK_THRESHOLD", 15),
		MaxChatLength:        getEnvInt("MAX_CHAT_LENGTH", 500),
		ChatHistoryLimit:     getEnvInt("CHAT_HISTORY_LIMIT", 100),
		SessionMaxAge:        getEnvDuration("SESSION_MAX_AGE", 30*time.Minute),
	}
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// getEnvDuration parses an environment variable as a time.Duration, else a default.
func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
