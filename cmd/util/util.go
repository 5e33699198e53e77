package util

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/qKV/lib/db/record"
	"github.com/ValentinKolb/qKV/lib/store"
	"github.com/ValentinKolb/qKV/lib/value"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the store configuration flags to a command
func SetupStoreFlags(cmd *cobra.Command) {
	defaults := store.DefaultConfig()

	key := "path"
	cmd.PersistentFlags().String(key, defaults.Path, WrapString("Path of the data file. A path ending in / is a directory and gets db.qkv, any other extension is replaced by .qkv"))

	key = "runtime"
	cmd.PersistentFlags().String(key, string(defaults.Runtime), WrapString("Where data is kept (disk, memory)"))

	key = "engine"
	cmd.PersistentFlags().String(key, string(defaults.Engine), WrapString("In-memory cache engine (maple, plain)"))

	key = "compression"
	cmd.PersistentFlags().String(key, defaults.Compression.String(), WrapString("Compression of new records (none, snappy, zstd, lz4, brotli)"))

	key = "sync"
	cmd.PersistentFlags().Bool(key, defaults.SyncWrites, WrapString("Whether to fsync the data file after every write"))

	key = "batch-bytes"
	cmd.PersistentFlags().Int(key, 0, WrapString("Buffer writes until this many bytes are pending (0 = write through)"))

	key = "batch-interval"
	cmd.PersistentFlags().Duration(key, 0, WrapString("Write buffered records at least this often (0 = no timer)"))

	key = "default-ttl"
	cmd.PersistentFlags().Duration(key, 0, WrapString("TTL applied to writes without an explicit TTL (0 = never expire)"))

	key = "sweep-interval"
	cmd.PersistentFlags().Duration(key, defaults.SweepInterval, WrapString("How often expired keys are removed from the data file (0 = never)"))

	key = "log"
	cmd.PersistentFlags().Bool(key, false, WrapString("Whether to print store log messages (to stderr)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, defaults.LogLevel, WrapString("Log level (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("qkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetStoreConfig reads the store configuration from viper
func GetStoreConfig() (store.Config, error) {
	conf := store.DefaultConfig()

	runtime, err := store.ParseRuntime(viper.GetString("runtime"))
	if err != nil {
		return conf, err
	}
	engine, err := store.ParseEngine(viper.GetString("engine"))
	if err != nil {
		return conf, err
	}
	compression, err := record.ParseCompression(viper.GetString("compression"))
	if err != nil {
		return conf, err
	}

	conf.Path = viper.GetString("path")
	conf.Runtime = runtime
	conf.Engine = engine
	conf.Compression = compression
	conf.SyncWrites = viper.GetBool("sync")
	conf.BatchBytes = viper.GetInt("batch-bytes")
	conf.BatchInterval = viper.GetDuration("batch-interval")
	conf.DefaultTTL = viper.GetDuration("default-ttl")
	conf.SweepInterval = viper.GetDuration("sweep-interval")
	conf.Log = viper.GetBool("log")
	conf.LogLevel = viper.GetString("log-level")

	return conf, conf.Validate()
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Value parsing
// --------------------------------------------------------------------------

// ValueTypes lists the names accepted by ParseValue
var ValueTypes = []string{"string", "int", "float", "bool", "bytes", "hash", "null", "strings", "ints"}

// ParseValue converts command line text to a value of the named type.
// bytes are hex encoded, a hash is written as k=v pairs separated by commas
// and strings/ints are comma separated lists.
func ParseValue(typ, raw string) (value.Value, error) {
	switch strings.ToLower(typ) {
	case "string", "":
		return value.String(raw), nil
	case "int":
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return value.Value{}, fmt.Errorf("invalid int %q: %w", raw, err)
		}
		return value.Int(i), nil
	case "float":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return value.Value{}, fmt.Errorf("invalid float %q: %w", raw, err)
		}
		return value.Float(f), nil
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return value.Value{}, fmt.Errorf("invalid bool %q: %w", raw, err)
		}
		return value.Bool(b), nil
	case "bytes":
		b, err := hex.DecodeString(raw)
		if err != nil {
			return value.Value{}, fmt.Errorf("invalid hex %q: %w", raw, err)
		}
		return value.Bytes(b), nil
	case "hash":
		m := make(map[string]string)
		for _, pair := range splitList(raw) {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return value.Value{}, fmt.Errorf("invalid hash field %q, expected key=value", pair)
			}
			m[k] = v
		}
		return value.Hash(m), nil
	case "null":
		return value.Null(), nil
	case "strings":
		items := splitList(raw)
		values := make([]value.Value, len(items))
		for i, s := range items {
			values[i] = value.String(s)
		}
		return value.Seq(value.KindString, values...)
	case "ints":
		items := splitList(raw)
		values := make([]value.Value, len(items))
		for i, s := range items {
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return value.Value{}, fmt.Errorf("invalid int %q: %w", s, err)
			}
			values[i] = value.Int(n)
		}
		return value.Seq(value.KindInt, values...)
	default:
		return value.Value{}, fmt.Errorf("unknown type %q (one of %s)", typ, strings.Join(ValueTypes, ", "))
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// FormatTTL renders a ttl flag value for output
func FormatTTL(ttl time.Duration) string {
	switch {
	case ttl == 0:
		return "default"
	case ttl < 0:
		return "never"
	default:
		return ttl.String()
	}
}
