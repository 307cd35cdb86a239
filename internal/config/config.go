package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Service endpoint
	Host       string
	Port       int
	ServiceURL string // control surfaces dial this; derived from Host and Port when unset

	// Equalizer
	Platform       string // "software" has an effect framework, anything else does not
	DefaultSession int    // audio session the service starts on and falls back to

	// Bridge
	BindGrace   time.Duration // how long a call waits for the service to bind
	BindTimeout time.Duration // how long one bind attempt may take, including start

	LogLevel string

	// Sample playback
	SamplePaths       []string
	SampleSession     int
	CrossfadeDuration time.Duration
	CrossfadeCurve    string // "smoothstep" or "linear"

	NowPlayingFile string // JSON file written by the media-session observer
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	cfg := Config{
		Host:       envStr("EQ_HOST", "127.0.0.1"),
		Port:       envInt("EQ_PORT", 8765),
		ServiceURL: envStr("EQ_SERVICE_URL", ""),

		Platform:       envStr("EQ_PLATFORM", "software"),
		DefaultSession: envInt("EQ_DEFAULT_SESSION", 0),

		BindGrace:   time.Duration(envInt("EQ_BIND_GRACE_MS", 1000)) * time.Millisecond,
		BindTimeout: time.Duration(envInt("EQ_BIND_TIMEOUT_MS", 5000)) * time.Millisecond,

		LogLevel: envStr("EQ_LOG_LEVEL", "info"),

		SamplePaths:       envList("EQ_SAMPLE_PATHS"),
		SampleSession:     envInt("EQ_SAMPLE_SESSION", 1),
		CrossfadeDuration: time.Duration(envFloat("EQ_CROSSFADE_SECONDS", 3) * float64(time.Second)),
		CrossfadeCurve:    envStr("EQ_CROSSFADE_CURVE", "smoothstep"),

		NowPlayingFile: envStr("EQ_NOWPLAYING_FILE", ""),
	}
	if cfg.ServiceURL == "" {
		cfg.ServiceURL = fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	}
	return cfg
}

// Addr is the listen address of the service.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envList splits a comma separated value, dropping empty entries.
func envList(key string) []string {
	parts := lo.Map(strings.Split(os.Getenv(key), ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Compact(parts)
}
