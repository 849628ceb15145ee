// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all simulation and server
// settings.
//
// IMPORTANT: When changing defaults, only modify this file. All other
// parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
)

// =============================================================================
// MOVEMENT SIMULATION CONFIGURATION
// =============================================================================

// MovementConfig holds the movement core's deployment knobs.
type MovementConfig struct {
	TickRate         int    // simulation ticks per second: 20, 10, 5 or 1
	Backend          string // velocity computation backend: "cpu" or "gpu"
	ClickMove        bool   // whether right-click move commands are accepted
	AttackOnClick    bool   // whether click-moves are attack-moves
	CommandQueueSize int    // MPSC ring capacity
	FieldCacheBytes  int64  // field cache storage bound
}

// DefaultMovement returns the default movement configuration.
func DefaultMovement() MovementConfig {
	return MovementConfig{
		TickRate:         20,
		Backend:          "cpu",
		ClickMove:        true,
		AttackOnClick:    false,
		CommandQueueSize: 4096,
		FieldCacheBytes:  64 << 20, // 64 MiB of cached fields
	}
}

// MovementFromEnv returns the movement configuration with environment
// variable overrides. Environment variables take precedence over defaults.
func MovementFromEnv() MovementConfig {
	cfg := DefaultMovement()

	if tr := getEnvInt("MOVE_TICK_RATE", 0); tr > 0 {
		switch tr {
		case 20, 10, 5, 1:
			cfg.TickRate = tr
		}
	}
	if b := os.Getenv("MOVE_BACKEND"); b == "cpu" || b == "gpu" {
		cfg.Backend = b
	}
	if os.Getenv("MOVE_CLICK_MOVE") == "false" {
		cfg.ClickMove = false
	}
	if os.Getenv("MOVE_ATTACK_ON_CLICK") == "true" {
		cfg.AttackOnClick = true
	}
	if qs := getEnvInt("MOVE_COMMAND_QUEUE", 0); qs > 0 {
		cfg.CommandQueueSize = qs
	}
	if cb := getEnvInt("MOVE_FIELD_CACHE_MB", 0); cb > 0 {
		cfg.FieldCacheBytes = int64(cb) << 20
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds the ops HTTP server settings.
type ServerConfig struct {
	Port int
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{Port: 3000}
}

// ServerFromEnv returns the server configuration with environment
// variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	return cfg
}

// =============================================================================
// LOGGING CONFIGURATION
// =============================================================================

// LogConfig holds structured-logging settings.
type LogConfig struct {
	Level    string // logrus level name
	File     string // rotated log file; empty logs to stderr only
	MaxSizeM int    // lumberjack rotation threshold in MiB
	MaxFiles int    // rotated files kept
}

// DefaultLog returns the default logging configuration.
func DefaultLog() LogConfig {
	return LogConfig{
		Level:    "info",
		File:     "",
		MaxSizeM: 50,
		MaxFiles: 5,
	}
}

// LogFromEnv returns the logging configuration with environment variable
// overrides.
func LogFromEnv() LogConfig {
	cfg := DefaultLog()
	if l := os.Getenv("LOG_LEVEL"); l != "" {
		cfg.Level = l
	}
	if f := os.Getenv("LOG_FILE"); f != "" {
		cfg.File = f
	}
	if m := getEnvInt("LOG_MAX_SIZE_MB", 0); m > 0 {
		cfg.MaxSizeM = m
	}
	if n := getEnvInt("LOG_MAX_FILES", 0); n > 0 {
		cfg.MaxFiles = n
	}
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Movement MovementConfig
	Server   ServerConfig
	Log      LogConfig
	MapFile  string
	EventLog string
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Movement: MovementFromEnv(),
		Server:   ServerFromEnv(),
		Log:      LogFromEnv(),
		MapFile:  getEnvStr("MAP_FILE", "maps/plains.yaml"),
		EventLog: getEnvStr("EVENT_LOG", ""),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
