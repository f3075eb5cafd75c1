package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the stream resolver.
type Config struct {
	// Browser launch settings
	Headless   bool
	UserAgent  string
	MediaMuted bool

	// Attach to an already running browser instead of launching one.
	CDPRemote  bool
	CDPAddress string
	CDPPort    int

	// Engine timing and retry bounds
	RequestTimeoutMS   int
	NavTimeoutMS       int
	PopupWaitMS        int
	GestureWaitMS      int
	FrameWaitMS        int
	MaxGestureAttempts int

	// Site profile (selectors, heuristics) override file
	ProfileFile string

	// Collaborators
	HistoryFile  string
	PlayerBinary string
	NTFYURL      string

	// Optional debugging output
	CaptureDir           string
	CaptureBufferSize    int
	CaptureMaxFileSizeMB int
	SnapshotDir          string

	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	d := Default()
	cfg := &Config{
		Headless:             getEnvBoolOrDefault("SOAP_HEADLESS", d.Headless),
		UserAgent:            getEnvOrDefault("SOAP_USER_AGENT", d.UserAgent),
		MediaMuted:           getEnvBoolOrDefault("SOAP_MEDIA_MUTED", d.MediaMuted),
		CDPRemote:            getEnvBoolOrDefault("SOAP_CDP_REMOTE", d.CDPRemote),
		CDPAddress:           getEnvOrDefault("CHROMIUM_CDP_ADDRESS", d.CDPAddress),
		CDPPort:              getEnvIntOrDefault("CHROMIUM_CDP_PORT", d.CDPPort),
		RequestTimeoutMS:     getEnvIntOrDefault("SOAP_REQUEST_TIMEOUT_MS", d.RequestTimeoutMS),
		NavTimeoutMS:         getEnvIntOrDefault("SOAP_NAV_TIMEOUT_MS", d.NavTimeoutMS),
		PopupWaitMS:          getEnvIntOrDefault("SOAP_POPUP_WAIT_MS", d.PopupWaitMS),
		GestureWaitMS:        getEnvIntOrDefault("SOAP_GESTURE_WAIT_MS", d.GestureWaitMS),
		FrameWaitMS:          getEnvIntOrDefault("SOAP_FRAME_WAIT_MS", d.FrameWaitMS),
		MaxGestureAttempts:   getEnvIntOrDefault("SOAP_MAX_GESTURE_ATTEMPTS", d.MaxGestureAttempts),
		ProfileFile:          getEnvOrDefault("SOAP_PROFILE_FILE", d.ProfileFile),
		HistoryFile:          getEnvOrDefault("SOAP_HISTORY_FILE", d.HistoryFile),
		PlayerBinary:         getEnvOrDefault("SOAP_PLAYER", d.PlayerBinary),
		NTFYURL:              getEnvOrDefault("SOAP_NTFY_URL", d.NTFYURL),
		CaptureDir:           getEnvOrDefault("SOAP_CAPTURE_DIR", d.CaptureDir),
		CaptureBufferSize:    getEnvIntOrDefault("SOAP_CAPTURE_BUFFER_SIZE", d.CaptureBufferSize),
		CaptureMaxFileSizeMB: getEnvIntOrDefault("SOAP_CAPTURE_MAX_FILE_SIZE_MB", d.CaptureMaxFileSizeMB),
		SnapshotDir:          getEnvOrDefault("SOAP_SNAPSHOT_DIR", d.SnapshotDir),
		LogLevel:             strings.ToLower(getEnvOrDefault("SOAP_LOG_LEVEL", d.LogLevel)),
		LogFile:              getEnvOrDefault("SOAP_LOG_FILE", d.LogFile),
	}
	cfg.clamp()
	return cfg, nil
}

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		Headless:             true,
		UserAgent:            DefaultUserAgent,
		MediaMuted:           true,
		CDPAddress:           "127.0.0.1",
		CDPPort:              9220,
		RequestTimeoutMS:     20000,
		NavTimeoutMS:         30000,
		PopupWaitMS:          3000,
		GestureWaitMS:        5000,
		FrameWaitMS:          3000,
		MaxGestureAttempts:   10,
		HistoryFile:          ".configs/user_history.json",
		PlayerBinary:         "mpv",
		CaptureBufferSize:    1000,
		CaptureMaxFileSizeMB: 50,
		LogLevel:             "info",
		LogFile:              "logs/soapstream.log",
	}
}

func (c *Config) clamp() {
	if c.RequestTimeoutMS < 1000 {
		c.RequestTimeoutMS = 1000
	}
	if c.NavTimeoutMS < 1000 {
		c.NavTimeoutMS = 1000
	}
	if c.PopupWaitMS < 0 {
		c.PopupWaitMS = 0
	}
	if c.MaxGestureAttempts < 1 {
		c.MaxGestureAttempts = 1
	}
}

func (c *Config) RequestTimeout() time.Duration { return ms(c.RequestTimeoutMS) }
func (c *Config) NavTimeout() time.Duration     { return ms(c.NavTimeoutMS) }
func (c *Config) PopupWait() time.Duration      { return ms(c.PopupWaitMS) }
func (c *Config) GestureWait() time.Duration    { return ms(c.GestureWaitMS) }
func (c *Config) FrameWait() time.Duration      { return ms(c.FrameWaitMS) }

// GetCDPURL returns the full CDP HTTP endpoint used by chromedp remote allocator.
func (c *Config) GetCDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
