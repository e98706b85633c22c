package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	DefaultAPIBaseURL = "http://localhost:8080"
	DefaultLogDir     = "logs"
	DefaultServeAddr  = ":3000"
)

// Config holds application configuration
type Config struct {
	APIBaseURL string // Backend address, e.g. "http://localhost:8080"
	LogDir     string // Where rotated log, trace and metric files go
	Debug      bool

	// Front-ends
	ServeAddr string // Listen address for the browser front-end; empty runs the terminal
	Serve     bool

	// Optional extras
	WatchDir    string // Directory whose new documents are uploaded automatically
	ArchivePath string // SQLite file receiving the transcript on exit
}

// Load builds a Config from defaults overridden by environment variables
func Load() (Config, error) {
	debug, err := parseBoolEnv("RETRIEVO_DEBUG", false)
	if err != nil {
		return Config{}, err
	}
	serve, err := parseBoolEnv("RETRIEVO_SERVE", false)
	if err != nil {
		return Config{}, err
	}

	addr, err := normalizeAddr(getEnvOrDefault("RETRIEVO_SERVE_ADDR", DefaultServeAddr))
	if err != nil {
		return Config{}, err
	}

	return Config{
		APIBaseURL:  getEnvOrDefault("RETRIEVO_API_URL", DefaultAPIBaseURL),
		LogDir:      getEnvOrDefault("RETRIEVO_LOG_DIR", DefaultLogDir),
		Debug:       debug,
		ServeAddr:   addr,
		Serve:       serve,
		WatchDir:    strings.TrimSpace(os.Getenv("RETRIEVO_WATCH_DIR")),
		ArchivePath: strings.TrimSpace(os.Getenv("RETRIEVO_ARCHIVE")),
	}, nil
}

// Validate checks values that may have been overridden by flags
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("api url must not be empty")
	}
	addr, err := normalizeAddr(c.ServeAddr)
	if err != nil {
		return err
	}
	c.ServeAddr = addr
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}
	return nil
}

// normalizeAddr accepts "3000", ":3000" or "127.0.0.1:3000"
func normalizeAddr(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return DefaultServeAddr, nil
	}
	if strings.Contains(addr, " ") {
		return "", fmt.Errorf("invalid listen address: %q", addr)
	}
	if strings.Contains(addr, ":") {
		return addr, nil
	}
	if _, err := strconv.Atoi(addr); err != nil {
		return "", fmt.Errorf("invalid listen address: %q", addr)
	}
	return ":" + addr, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
