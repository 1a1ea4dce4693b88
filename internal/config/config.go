// Package config provides configuration management for the DraftDesk Agent.
// Configuration is loaded from environment variables with sensible defaults.
// A .env file, when present, seeds variables that are not already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort           = 8799
	DefaultLogLevel       = "info"
	DefaultDataDir        = ".draftdesk"
	DefaultBackendURL     = "http://127.0.0.1:9001"
	DefaultRequestTimeout = 60 // seconds

	// Environment variable names
	EnvPort           = "DRAFTDESK_PORT"
	EnvLogLevel       = "DRAFTDESK_LOG_LEVEL"
	EnvDataDir        = "DRAFTDESK_DATA_DIR"
	EnvBackendURL     = "DRAFTDESK_BACKEND_URL"
	EnvDraftFolder    = "DRAFTDESK_DRAFT_FOLDER"
	EnvHeadless       = "DRAFTDESK_HEADLESS"
	EnvOffline        = "DRAFTDESK_OFFLINE"
	EnvRequestTimeout = "DRAFTDESK_REQUEST_TIMEOUT"

	// Database filename
	DBFilename = "draftdesk.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	BackendURL() string
	DraftFolder() string
	Headless() bool
	Offline() bool
	RequestTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port           int
	logLevel       string
	dataDir        string
	backendURL     string
	draftFolder    string
	headless       bool
	offline        bool
	requestTimeout time.Duration
}

// LoadDotEnv loads variables from path without overriding ones already set.
// A missing file is not an error unless the path was given explicitly.
func LoadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		backendURL:     DefaultBackendURL,
		requestTimeout: DefaultRequestTimeout * time.Second,
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
		switch strings.ToLower(ll) {
		case "debug", "info", "warn", "warning", "error":
			cfg.logLevel = ll
		default:
			return nil, fmt.Errorf("invalid %s: %q", EnvLogLevel, ll)
		}
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if u := strings.TrimSpace(os.Getenv(EnvBackendURL)); u != "" {
		cfg.backendURL = u
	}

	if df := strings.TrimSpace(os.Getenv(EnvDraftFolder)); df != "" {
		if !filepath.IsAbs(df) {
			return nil, fmt.Errorf("invalid %s: must be an absolute path", EnvDraftFolder)
		}
		cfg.draftFolder = df
	}

	var err error
	if cfg.headless, err = envBool(EnvHeadless); err != nil {
		return nil, err
	}
	if cfg.offline, err = envBool(EnvOffline); err != nil {
		return nil, err
	}

	if rt := os.Getenv(EnvRequestTimeout); rt != "" {
		secs, err := strconv.Atoi(rt)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid %s: must be a positive number of seconds", EnvRequestTimeout)
		}
		cfg.requestTimeout = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

// Port returns the local API port
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

// BackendURL returns the base URL of the draft backend before any stored
// setting is applied.
func (c *EnvConfig) BackendURL() string {
	return c.backendURL
}

func (c *EnvConfig) DraftFolder() string {
	return c.draftFolder
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

// Offline reports whether templates are kept in memory and draft requests are
// accepted without contacting a backend.
func (c *EnvConfig) Offline() bool {
	return c.offline
}

func (c *EnvConfig) RequestTimeout() time.Duration {
	return c.requestTimeout
}

// SetHeadless and SetOffline apply command-line flags on top of the
// environment.
func (c *EnvConfig) SetHeadless(v bool) {
	c.headless = v
}

func (c *EnvConfig) SetOffline(v bool) {
	c.offline = v
}

func envBool(name string) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
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
