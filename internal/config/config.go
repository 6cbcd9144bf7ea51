package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every configuration section of the service.
type Config struct {
	Server     ServerConfig
	Live       LiveConfig
	Recognizer RecognizerConfig
	Batch      BatchConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	live, err := loadLiveConfig()
	if err != nil {
		return nil, err
	}

	recognizer, err := loadRecognizerConfig()
	if err != nil {
		return nil, err
	}

	batch, err := loadBatchConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Live: live, Recognizer: recognizer, Batch: batch}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr      string
	StaticDir string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		return ServerConfig{Addr: port, StaticDir: getEnvOrDefault("STATIC_DIR", "web/static")}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{
		Addr:      ":" + port,
		StaticDir: getEnvOrDefault("STATIC_DIR", "web/static"),
	}, nil
}

// LiveConfig tunes the per-session websocket pipeline.
type LiveConfig struct {
	DispatchInterval time.Duration
	BackendTimeout   time.Duration
	SilenceFraction  float64
	MalformedLimit   int
}

func loadLiveConfig() (LiveConfig, error) {
	cfg := LiveConfig{
		DispatchInterval: 500 * time.Millisecond,
		BackendTimeout:   5 * time.Second,
		SilenceFraction:  0.4,
		MalformedLimit:   25,
	}

	if ms, err := parseOptionalIntEnv("LIVE_DISPATCH_INTERVAL_MS"); err != nil {
		return LiveConfig{}, err
	} else if ms != nil {
		if *ms <= 0 {
			return LiveConfig{}, fmt.Errorf("LIVE_DISPATCH_INTERVAL_MS must be positive, got %d", *ms)
		}
		cfg.DispatchInterval = time.Duration(*ms) * time.Millisecond
	}

	if raw := strings.TrimSpace(os.Getenv("LIVE_BACKEND_TIMEOUT")); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return LiveConfig{}, fmt.Errorf("invalid LIVE_BACKEND_TIMEOUT value %q: %w", raw, err)
		}
		if timeout <= 0 {
			return LiveConfig{}, fmt.Errorf("LIVE_BACKEND_TIMEOUT must be positive, got %s", timeout)
		}
		cfg.BackendTimeout = timeout
	}

	if fraction, err := parseOptionalFloatEnv("LIVE_SILENCE_FRACTION"); err != nil {
		return LiveConfig{}, err
	} else if fraction != nil {
		if *fraction < 0 || *fraction > 1 {
			return LiveConfig{}, fmt.Errorf("LIVE_SILENCE_FRACTION must be within [0, 1], got %g", *fraction)
		}
		cfg.SilenceFraction = *fraction
	}

	if limit, err := parseOptionalIntEnv("LIVE_MALFORMED_LIMIT"); err != nil {
		return LiveConfig{}, err
	} else if limit != nil {
		if *limit < 1 {
			return LiveConfig{}, fmt.Errorf("LIVE_MALFORMED_LIMIT must be at least 1, got %d", *limit)
		}
		cfg.MalformedLimit = *limit
	}

	return cfg, nil
}

// RecognizerConfig describes the streaming speech recognition backend.
type RecognizerConfig struct {
	URL          string
	AppKey       string
	AccessKey    string
	Language     string
	SourceFormat string
	FFmpegPath   string
}

// Enabled reports whether a real recognizer endpoint was configured.
func (c RecognizerConfig) Enabled() bool {
	return c.URL != ""
}

func loadRecognizerConfig() (RecognizerConfig, error) {
	return RecognizerConfig{
		URL:          strings.TrimSpace(os.Getenv("RECOGNIZER_URL")),
		AppKey:       strings.TrimSpace(os.Getenv("RECOGNIZER_APP_KEY")),
		AccessKey:    strings.TrimSpace(os.Getenv("RECOGNIZER_ACCESS_KEY")),
		Language:     getEnvOrDefault("RECOGNIZER_LANGUAGE", "en-US"),
		SourceFormat: getEnvOrDefault("RECOGNIZER_SOURCE_FORMAT", "webm"),
		FFmpegPath:   getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),
	}, nil
}

// BatchConfig tunes the spool-based transcription flow.
type BatchConfig struct {
	Enabled  bool
	SpoolDir string
	Workers  int
}

func loadBatchConfig() (BatchConfig, error) {
	enabled, err := parseBoolEnv("BATCH_ENABLED", true)
	if err != nil {
		return BatchConfig{}, err
	}

	workers := 2
	if n, err := parseOptionalIntEnv("BATCH_WORKERS"); err != nil {
		return BatchConfig{}, err
	} else if n != nil {
		if *n < 1 {
			return BatchConfig{}, fmt.Errorf("BATCH_WORKERS must be at least 1, got %d", *n)
		}
		workers = *n
	}

	return BatchConfig{
		Enabled:  enabled,
		SpoolDir: getEnvOrDefault("BATCH_SPOOL_DIR", "spool"),
		Workers:  workers,
	}, nil
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

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
