package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"flowcast/internal/eventlog"
	"flowcast/internal/jira"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// ErrConfig is wrapped by every configuration error.
var ErrConfig = errors.New("invalid configuration")

// AppConfig holds the process-level configuration taken from the environment.
type AppConfig struct {
	Jira             jira.Config
	DataPath         string
	LogDir           string
	CacheDir         string
	CacheCompression eventlog.Compression
	Workers          int
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	return FromEnv(exeDir)
}

// FromEnv builds the configuration from the environment alone. exeDir is the
// fallback data path.
func FromEnv(exeDir string) (*AppConfig, error) {
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	delaySecs, err := strconv.ParseFloat(getEnv("JIRA_REQUEST_DELAY_SECONDS", "0"), 64)
	if err != nil || delaySecs < 0 {
		return nil, fmt.Errorf("%w: JIRA_REQUEST_DELAY_SECONDS must be a non-negative number", ErrConfig)
	}

	compression, err := eventlog.ParseCompression(getEnv("CACHE_COMPRESSION", "zstd"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	workers := runtime.GOMAXPROCS(0)
	if v := os.Getenv("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: WORKERS must be a positive integer", ErrConfig)
		}
		workers = n
	}

	return &AppConfig{
		Jira: jira.Config{
			BaseURL:      getEnv("JIRA_URL", ""),
			Token:        getEnv("JIRA_TOKEN", ""),
			Username:     getEnv("JIRA_USERNAME", ""),
			Password:     getEnv("JIRA_PASSWORD", ""),
			XsrfToken:    getEnv("JIRA_XSRF_TOKEN", ""),
			SessionID:    getEnv("JIRA_SESSION_ID", ""),
			RememberMe:   getEnv("JIRA_REMEMBERME_COOKIE", ""),
			RequestDelay: time.Duration(delaySecs * float64(time.Second)),
		},
		DataPath:         dataPath,
		LogDir:           getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs")),
		CacheDir:         filepath.Join(dataPath, "cache"),
		CacheCompression: compression,
		Workers:          workers,
	}, nil
}

// JiraConfig merges the connection section of a workflow file under the
// environment: values from the environment win.
func (c *AppConfig) JiraConfig(conn Connection) jira.Config {
	cfg := c.Jira
	if cfg.BaseURL == "" {
		cfg.BaseURL = conn.Domain
	}
	if cfg.Token == "" {
		cfg.Token = conn.Token
	}
	if cfg.Username == "" {
		cfg.Username = conn.Username
	}
	if cfg.Password == "" {
		cfg.Password = conn.Password
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
