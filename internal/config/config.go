// Package config provides configuration for the eraser agent and the media
// service. Values come from environment variables, optionally seeded from a
// .env file in the working directory, with defaults for everything.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort              = 8787
	DefaultMediaPort         = 8788
	DefaultLogLevel          = "info"
	DefaultDataDir           = ".watermark-eraser"
	DefaultRemoteURL         = "http://127.0.0.1:8788"
	DefaultProcessingDelayMS = 3000
	DefaultOwnerID           = "local"
	DefaultS3Prefix          = "chunks"
	DefaultS3Region          = "us-east-1"

	// Environment variable names
	EnvPort              = "ERASER_PORT"
	EnvMediaPort         = "ERASER_MEDIA_PORT"
	EnvLogLevel          = "ERASER_LOG_LEVEL"
	EnvDataDir           = "ERASER_DATA_DIR"
	EnvAccessSecret      = "ERASER_ACCESS_SECRET"
	EnvRemoteURL         = "ERASER_REMOTE_URL"
	EnvHeadless          = "ERASER_HEADLESS"
	EnvProcessingDelayMS = "ERASER_PROCESSING_DELAY_MS"
	EnvOwnerID           = "ERASER_OWNER_ID"
	EnvStorage           = "ERASER_STORAGE"
	EnvS3Bucket          = "ERASER_S3_BUCKET"
	EnvS3Prefix          = "ERASER_S3_PREFIX"
	EnvS3Endpoint        = "ERASER_S3_ENDPOINT"
	EnvS3Region          = "ERASER_S3_REGION"
	EnvShareURL          = "ERASER_SHARE_URL"

	// Database filename
	DBFilename = "eraser.db"
	// AgentDBFilename holds the agent's local settings.
	AgentDBFilename = "agent.db"

	// EnvFile is read from the working directory when present.
	EnvFile = ".env"
)

// Storage selects the media service chunk store.
type Storage string

const (
	StorageFS Storage = "fs"
	StorageS3 Storage = "s3"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	MediaPort() int
	LogLevel() string
	DataDir() string
	DBPath() string
	AgentDBPath() string
	ChunkDir() string
	AccessSecret() string
	RemoteURL() string
	Headless() bool
	ProcessingDelay() time.Duration
	OwnerID() string
	Storage() Storage
	S3Bucket() string
	S3Prefix() string
	S3Endpoint() string
	S3Region() string
	ShareURL() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port            int
	mediaPort       int
	logLevel        string
	dataDir         string
	accessSecret    string
	remoteURL       string
	headless        bool
	processingDelay time.Duration
	ownerID         string
	shareURL        string

	storage    Storage
	s3Bucket   string
	s3Prefix   string
	s3Endpoint string
	s3Region   string
}

// New loads .env from the working directory (if any) and then reads the
// environment. Variables already set in the environment win over .env.
func New() (*EnvConfig, error) {
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", EnvFile, err)
	}
	return FromEnv()
}

// FromEnv builds an EnvConfig from the process environment only.
func FromEnv() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:            DefaultPort,
		mediaPort:       DefaultMediaPort,
		logLevel:        DefaultLogLevel,
		dataDir:         defaultDataDir(),
		remoteURL:       DefaultRemoteURL,
		processingDelay: time.Duration(DefaultProcessingDelayMS) * time.Millisecond,
		ownerID:         DefaultOwnerID,
		storage:         StorageFS,
		s3Prefix:        DefaultS3Prefix,
		s3Region:        DefaultS3Region,
	}

	var err error
	if cfg.port, err = portFromEnv(EnvPort, cfg.port); err != nil {
		return nil, err
	}
	if cfg.mediaPort, err = portFromEnv(EnvMediaPort, cfg.mediaPort); err != nil {
		return nil, err
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.accessSecret = os.Getenv(EnvAccessSecret)

	if ru := os.Getenv(EnvRemoteURL); ru != "" {
		u, err := url.Parse(ru)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid %s: %q is not an absolute URL", EnvRemoteURL, ru)
		}
		cfg.remoteURL = strings.TrimRight(ru, "/")
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	if d := os.Getenv(EnvProcessingDelayMS); d != "" {
		ms, err := strconv.Atoi(d)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvProcessingDelayMS, err)
		}
		if ms < 0 {
			return nil, fmt.Errorf("invalid %s: must not be negative", EnvProcessingDelayMS)
		}
		cfg.processingDelay = time.Duration(ms) * time.Millisecond
	}

	if su := os.Getenv(EnvShareURL); su != "" {
		u, err := url.Parse(su)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid %s: %q is not an absolute URL", EnvShareURL, su)
		}
		cfg.shareURL = su
	}

	if o := os.Getenv(EnvOwnerID); o != "" {
		cfg.ownerID = o
	}

	if s := os.Getenv(EnvStorage); s != "" {
		switch Storage(strings.ToLower(s)) {
		case StorageFS:
			cfg.storage = StorageFS
		case StorageS3:
			cfg.storage = StorageS3
		default:
			return nil, fmt.Errorf("invalid %s: %q (want fs or s3)", EnvStorage, s)
		}
	}

	cfg.s3Bucket = os.Getenv(EnvS3Bucket)
	if p := os.Getenv(EnvS3Prefix); p != "" {
		cfg.s3Prefix = strings.Trim(p, "/")
	}
	cfg.s3Endpoint = os.Getenv(EnvS3Endpoint)
	if r := os.Getenv(EnvS3Region); r != "" {
		cfg.s3Region = r
	}

	if cfg.storage == StorageS3 && cfg.s3Bucket == "" {
		return nil, fmt.Errorf("%s is required when %s=s3", EnvS3Bucket, EnvStorage)
	}

	return cfg, nil
}

func portFromEnv(name string, def int) (int, error) {
	p := os.Getenv(name)
	if p == "" {
		return def, nil
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid %s: port must be between 1 and 65535", name)
	}
	return port, nil
}

// Port returns the agent HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// MediaPort returns the media service HTTP port
func (c *EnvConfig) MediaPort() int {
	return c.mediaPort
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the media service database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

func (c *EnvConfig) AgentDBPath() string {
	return filepath.Join(c.dataDir, AgentDBFilename)
}

// ChunkDir is where the filesystem chunk store keeps received chunks.
func (c *EnvConfig) ChunkDir() string {
	return filepath.Join(c.dataDir, "chunks")
}

// AccessSecret is the shared secret gating every media service call.
func (c *EnvConfig) AccessSecret() string {
	return c.accessSecret
}

func (c *EnvConfig) RemoteURL() string {
	return c.remoteURL
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

// ProcessingDelay is how long the stand-in reconstruction step takes.
func (c *EnvConfig) ProcessingDelay() time.Duration {
	return c.processingDelay
}

func (c *EnvConfig) OwnerID() string {
	return c.ownerID
}

func (c *EnvConfig) Storage() Storage {
	return c.storage
}

func (c *EnvConfig) S3Bucket() string {
	return c.s3Bucket
}

func (c *EnvConfig) S3Prefix() string {
	return c.s3Prefix
}

// S3Endpoint overrides the S3 endpoint, e.g. for MinIO. Empty means AWS.
func (c *EnvConfig) S3Endpoint() string {
	return c.s3Endpoint
}

func (c *EnvConfig) S3Region() string {
	return c.s3Region
}

// ShareURL is the page access links point at. Defaults to the agent itself.
func (c *EnvConfig) ShareURL() string {
	if c.shareURL != "" {
		return c.shareURL
	}
	return fmt.Sprintf("http://127.0.0.1:%d/", c.port)
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
