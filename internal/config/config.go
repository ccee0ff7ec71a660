// Package config provides configuration management for the ClipForge server.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8686
	DefaultLogLevel = "info"
	DefaultDataDir  = ".clipforge"

	// Environment variable names
	EnvPort     = "CLIPFORGE_PORT"
	EnvLogLevel = "CLIPFORGE_LOG_LEVEL"
	EnvDataDir  = "CLIPFORGE_DATA_DIR"

	EnvFFmpegBinary  = "CLIPFORGE_FFMPEG"
	EnvFFprobeBinary = "CLIPFORGE_FFPROBE"

	EnvSessionTTL    = "CLIPFORGE_SESSION_TTL"
	EnvSweepInterval = "CLIPFORGE_SWEEP_INTERVAL"

	EnvGiphyAPIKey       = "CLIPFORGE_GIPHY_API_KEY"
	EnvGiphyBaseURL      = "CLIPFORGE_GIPHY_BASE_URL"
	EnvTranscribeAPIKey  = "CLIPFORGE_TRANSCRIBE_API_KEY"
	EnvTranscribeBaseURL = "CLIPFORGE_TRANSCRIBE_BASE_URL"

	// Database filename
	DBFilename = "clipforge.db"

	// Session lifecycle defaults
	DefaultSessionTTL    = 2 * time.Hour
	DefaultSweepInterval = 10 * time.Minute

	// Transcription polling defaults
	DefaultPollInterval = time.Second
	DefaultPollAttempts = 60
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	SessionsDir() string
	FFmpegBinary() string
	FFprobeBinary() string
	SessionTTL() time.Duration
	SweepInterval() time.Duration
	GiphyAPIKey() string
	GiphyBaseURL() string
	TranscribeAPIKey() string
	TranscribeBaseURL() string
	PollInterval() time.Duration
	PollAttempts() int
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string

	ffmpegBinary  string
	ffprobeBinary string

	sessionTTL    time.Duration
	sweepInterval time.Duration

	giphyAPIKey       string
	giphyBaseURL      string
	transcribeAPIKey  string
	transcribeBaseURL string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:          DefaultPort,
		logLevel:      DefaultLogLevel,
		dataDir:       defaultDataDir(),
		ffmpegBinary:  "ffmpeg",
		ffprobeBinary: "ffprobe",
		sessionTTL:    DefaultSessionTTL,
		sweepInterval: DefaultSweepInterval,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if b := os.Getenv(EnvFFmpegBinary); b != "" {
		cfg.ffmpegBinary = b
	}
	if b := os.Getenv(EnvFFprobeBinary); b != "" {
		cfg.ffprobeBinary = b
	}

	if ttl := os.Getenv(EnvSessionTTL); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvSessionTTL, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", EnvSessionTTL)
		}
		cfg.sessionTTL = d
	}

	if iv := os.Getenv(EnvSweepInterval); iv != "" {
		d, err := time.ParseDuration(iv)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvSweepInterval, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", EnvSweepInterval)
		}
		cfg.sweepInterval = d
	}

	cfg.giphyAPIKey = os.Getenv(EnvGiphyAPIKey)
	cfg.giphyBaseURL = os.Getenv(EnvGiphyBaseURL)
	cfg.transcribeAPIKey = os.Getenv(EnvTranscribeAPIKey)
	cfg.transcribeBaseURL = os.Getenv(EnvTranscribeBaseURL)

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// SessionsDir returns the directory under which session subtrees live
func (c *EnvConfig) SessionsDir() string {
	return filepath.Join(c.dataDir, "sessions")
}

func (c *EnvConfig) FFmpegBinary() string {
	return c.ffmpegBinary
}

func (c *EnvConfig) FFprobeBinary() string {
	return c.ffprobeBinary
}

// SessionTTL returns the idle threshold after which a session is destroyed
func (c *EnvConfig) SessionTTL() time.Duration {
	return c.sessionTTL
}

// SweepInterval returns how often the expiry sweep runs
func (c *EnvConfig) SweepInterval() time.Duration {
	return c.sweepInterval
}

func (c *EnvConfig) GiphyAPIKey() string {
	return c.giphyAPIKey
}

func (c *EnvConfig) GiphyBaseURL() string {
	return c.giphyBaseURL
}

func (c *EnvConfig) TranscribeAPIKey() string {
	return c.transcribeAPIKey
}

func (c *EnvConfig) TranscribeBaseURL() string {
	return c.transcribeBaseURL
}

func (c *EnvConfig) PollInterval() time.Duration {
	return DefaultPollInterval
}

func (c *EnvConfig) PollAttempts() int {
	return DefaultPollAttempts
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
