package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultBaseURL is the public S3 bucket hosting the trip-data archives.
const DefaultBaseURL = "https://s3.amazonaws.com/tripdata"

const (
	// FirstSupportedYear is the earliest year for which archives exist in the
	// current naming scheme.
	FirstSupportedYear = 2020

	// LastBundledYear is the last year distributed as one annual bundle of 12
	// nested monthly zips. Later years ship as independent monthly archives.
	LastBundledYear = 2023
)

// Environment variables recognised by Load.
const (
	EnvCacheDir       = "CITIBIKE_CACHE_DIR"
	EnvMaxConcurrency = "CITIBIKE_MAX_CONCURRENCY"
)

// Config holds application settings.
type Config struct {
	// CacheDir is the root of the local shard cache.
	CacheDir string
	// BaseURL is the remote archive source.
	BaseURL string
	// MaxWorkers caps parallel sampling jobs.
	MaxWorkers int
	// EventLogPath is the DuckDB file tracking fetch/sample events.
	// Empty disables event logging.
	EventLogPath string
}

// DefaultMaxWorkers leaves two CPUs free for the rest of the machine.
func DefaultMaxWorkers() int {
	if n := runtime.NumCPU() - 2; n > 1 {
		return n
	}
	return 1
}

// DefaultCacheDir returns the user-local cache location,
// e.g. ~/.cache/citisampler/source_data on Linux.
func DefaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "citisampler", "source_data")
}

// DefaultEventLogPath keeps the state DB next to, but outside of, the shard
// cache so cache cleanup never touches it.
func DefaultEventLogPath() string {
	return filepath.Join(filepath.Dir(DefaultCacheDir()), "events.duckdb")
}

// Load builds a Config with precedence: environment > .env file > defaults.
// A missing .env file is not an error.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		CacheDir:     DefaultCacheDir(),
		BaseURL:      DefaultBaseURL,
		MaxWorkers:   DefaultMaxWorkers(),
		EventLogPath: DefaultEventLogPath(),
	}

	if dir := os.Getenv(EnvCacheDir); dir != "" {
		cfg.CacheDir = dir
	}
	if raw := os.Getenv(EnvMaxConcurrency); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.MaxWorkers = n
		}
	}
	return cfg
}
