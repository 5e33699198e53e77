package store

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/db/logfile"
	"github.com/ValentinKolb/qKV/lib/db/record"
)

// DefaultPath is the data file used when no path is configured
const DefaultPath = "db.qkv"

// Runtime selects where a store keeps its data
type Runtime string

const (
	RuntimeDisk   Runtime = "disk"   // data file plus in-memory cache
	RuntimeMemory Runtime = "memory" // in-memory cache only, nothing survives Close
)

// WritePathFactory builds the write path of a disk store on top of its log
type WritePathFactory func(log *logfile.Log) (logfile.Appender, error)

// Config holds all configuration parameters of a store.
type Config struct {
	// Storage
	Path        string
	Runtime     Runtime
	Engine      db.Implementation
	Compression record.Compression
	SyncWrites  bool

	// Write path. BatchBytes or BatchInterval > 0 installs a
	// logfile.BatchAppender. WritePath, if set, overrides both.
	BatchBytes    int
	BatchInterval time.Duration
	WritePath     WritePathFactory

	// Expiry. DefaultTTL of 0 means keys never expire unless SetE asks for
	// it. SweepInterval of 0 disables the background sweeper, expired keys
	// are then only hidden, never removed from the file.
	DefaultTTL    time.Duration
	SweepInterval time.Duration

	// Logging
	Log      bool
	LogLevel string

	// Now is the clock used for expiry (nil = time.Now)
	Now func() time.Time
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Path:          DefaultPath,
		Runtime:       RuntimeDisk,
		Engine:        db.ImplMaple,
		Compression:   record.CompressionNone,
		SyncWrites:    true,
		SweepInterval: time.Second,
		Log:           true,
		LogLevel:      "info",
	}
}

// NormalizePath maps a user supplied path to the data file path: an empty
// path or a directory (trailing separator) gets DefaultPath appended, and the
// extension is forced to .qkv.
func NormalizePath(path string) string {
	if path == "" {
		return DefaultPath
	}
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(filepath.Separator)) {
		return filepath.Join(path, DefaultPath)
	}
	ext := filepath.Ext(path)
	if ext == ".qkv" {
		return path
	}
	return strings.TrimSuffix(path, ext) + ".qkv"
}

// ParseRuntime parses a runtime name
func ParseRuntime(s string) (Runtime, error) {
	switch Runtime(strings.ToLower(s)) {
	case RuntimeDisk, "":
		return RuntimeDisk, nil
	case RuntimeMemory:
		return RuntimeMemory, nil
	default:
		return "", fmt.Errorf("invalid runtime: %s. must be one of disk, memory", s)
	}
}

// ParseEngine parses a cache engine name
func ParseEngine(s string) (db.Implementation, error) {
	switch db.Implementation(strings.ToLower(s)) {
	case db.ImplMaple, "":
		return db.ImplMaple, nil
	case db.ImplPlain:
		return db.ImplPlain, nil
	default:
		return "", fmt.Errorf("invalid engine: %s. must be one of maple, plain", s)
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if _, err := ParseRuntime(string(c.Runtime)); err != nil {
		return err
	}
	if _, err := ParseEngine(string(c.Engine)); err != nil {
		return err
	}
	if !c.Compression.Valid() {
		return fmt.Errorf("invalid compression: %d", c.Compression)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.BatchBytes < 0 || c.BatchInterval < 0 {
		return fmt.Errorf("batch thresholds must not be negative")
	}
	if c.DefaultTTL < 0 || c.SweepInterval < 0 {
		return fmt.Errorf("ttl and sweep interval must not be negative")
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	durationOrNone := func(d time.Duration) string {
		if d <= 0 {
			return "none"
		}
		return d.String()
	}

	addSection("Storage")
	addField("Runtime", string(c.Runtime))
	if c.Runtime != RuntimeMemory {
		addField("Path", NormalizePath(c.Path))
		addField("Compression", c.Compression.String())
		addField("Sync Writes", fmt.Sprintf("%t", c.SyncWrites))
	}
	addField("Cache Engine", string(c.Engine))

	if c.Runtime != RuntimeMemory {
		addSection("Write Path")
		switch {
		case c.WritePath != nil:
			addField("Mode", "custom")
		case c.BatchBytes > 0 || c.BatchInterval > 0:
			addField("Mode", "batched")
			addField("Batch Bytes", fmt.Sprintf("%d", c.BatchBytes))
			addField("Batch Interval", durationOrNone(c.BatchInterval))
		default:
			addField("Mode", "direct")
		}
	}

	addSection("Expiry")
	addField("Default TTL", durationOrNone(c.DefaultTTL))
	addField("Sweep Interval", durationOrNone(c.SweepInterval))

	addSection("Logging")
	addField("Enabled", fmt.Sprintf("%t", c.Log))
	addField("Log Level", c.LogLevel)

	return sb.String()
}
