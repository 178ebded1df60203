// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the LFG chat service.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tyrowin/lfgchat/internal/chat"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// RoomConfig defines the default room and the fan-out buffer sizes.
type RoomConfig struct {
	DefaultRoom     string
	DefaultCapacity int
	Capacity        int
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string
	Env             string
	AllowedOrigins  []string
	MaxMessageSize  int64
	RateLimit       RateLimitConfig
	Rooms           RoomConfig
	ShutdownTimeout time.Duration
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		Env:  "dev",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 512,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		Rooms: RoomConfig{
			DefaultRoom:     chat.DefaultRoom,
			DefaultCapacity: chat.DefaultRoomCapacity,
			Capacity:        chat.RoomCapacity,
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

// sanitize fills every unset or invalid field with its default.
func (cfg Config) sanitize() Config {
	def := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.Env == "" {
		cfg.Env = def.Env
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.Rooms.DefaultRoom == "" {
		cfg.Rooms.DefaultRoom = def.Rooms.DefaultRoom
	}
	if cfg.Rooms.DefaultCapacity <= 0 {
		cfg.Rooms.DefaultCapacity = def.Rooms.DefaultCapacity
	}
	if cfg.Rooms.Capacity <= 0 {
		cfg.Rooms.Capacity = def.Rooms.Capacity
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.Env = env
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}

	if room := os.Getenv("DEFAULT_ROOM"); room != "" {
		cfg.Rooms.DefaultRoom = room
	}

	if capacity := os.Getenv("DEFAULT_ROOM_CAPACITY"); capacity != "" {
		cfg.Rooms.DefaultCapacity = parseIntValue(capacity, cfg.Rooms.DefaultCapacity)
	}

	if capacity := os.Getenv("ROOM_CAPACITY"); capacity != "" {
		cfg.Rooms.Capacity = parseIntValue(capacity, cfg.Rooms.Capacity)
	}

	if timeout := os.Getenv("SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseSeconds(timeout, cfg.ShutdownTimeout)
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
