// Package config loads process settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ogn_parser/internal/ddb"
	"ogn_parser/internal/feed"
	"ogn_parser/internal/nats"
	"ogn_parser/internal/storage"
)

// Config holds the application configuration.
type Config struct {
	APRS feed.Config

	NATSURL          string
	NATSSubjectRaw   string
	NATSBeaconPrefix string
	NATSCodec        string

	// Backends whose host or path is empty stay disabled.
	Storage       storage.Config
	RedisAddr     string
	RedisPassword string

	DDBURL     string
	DDBRefresh time.Duration

	Workers    int
	DedupeSize int

	LogLevel string
	LogFile  string
	LogJSON  bool

	APIPort int
	APIKeys []string
}

// Load reads the .env file if present, then the environment.
func Load() (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	def := storage.DefaultConfig()
	cfg := &Config{
		APRS: feed.Config{
			Server:   EnvOrDefault("APRS_SERVER", feed.DefaultServer),
			User:     EnvOrDefault("APRS_USER", feed.DefaultUser),
			Passcode: EnvOrDefault("APRS_PASSCODE", feed.ReadOnlyPasscode),
			Filter:   os.Getenv("APRS_FILTER"),
		},
		NATSURL:          os.Getenv("NATS_URL"),
		NATSSubjectRaw:   EnvOrDefault("NATS_SUBJECT_RAW", nats.DefaultRawSubject),
		NATSBeaconPrefix: EnvOrDefault("NATS_SUBJECT_BEACONS", nats.DefaultBeaconPrefix),
		NATSCodec:        EnvOrDefault("NATS_CODEC", "json"),
		Storage: storage.Config{
			ClickHouse: storage.ClickHouseConfig{
				Host:     os.Getenv("CLICKHOUSE_HOST"),
				Database: EnvOrDefault("CLICKHOUSE_DATABASE", def.ClickHouse.Database),
				User:     EnvOrDefault("CLICKHOUSE_USER", def.ClickHouse.User),
				Password: os.Getenv("CLICKHOUSE_PASSWORD"),
			},
			Postgres: storage.PostgresConfig{
				Host:     os.Getenv("POSTGRES_HOST"),
				Database: EnvOrDefault("POSTGRES_DATABASE", def.Postgres.Database),
				User:     EnvOrDefault("POSTGRES_USER", def.Postgres.User),
				Password: EnvOrDefault("POSTGRES_PASSWORD", def.Postgres.Password),
			},
			SQLitePath: os.Getenv("SQLITE_PATH"),
		},
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DDBURL:        EnvOrDefault("DDB_URL", ddb.DefaultURL),
		LogLevel:      EnvOrDefault("LOG_LEVEL", "info"),
		LogFile:       os.Getenv("LOG_FILE"),
		APIKeys:       SplitList(os.Getenv("API_KEYS")),
	}

	var err error
	ints := []struct {
		key  string
		def  int
		into *int
	}{
		{"CLICKHOUSE_PORT", def.ClickHouse.Port, &cfg.Storage.ClickHouse.Port},
		{"POSTGRES_PORT", def.Postgres.Port, &cfg.Storage.Postgres.Port},
		{"WORKERS", 0, &cfg.Workers},
		{"DEDUPE_SIZE", 10000, &cfg.DedupeSize},
		{"API_PORT", 8081, &cfg.APIPort},
	}
	for _, i := range ints {
		if *i.into, err = envInt(i.key, i.def); err != nil {
			return nil, err
		}
	}

	if cfg.DDBRefresh, err = envDuration("DDB_REFRESH", ddb.DefaultRefresh); err != nil {
		return nil, err
	}
	if cfg.APRS.KeepAlive, err = envDuration("APRS_KEEPALIVE", feed.DefaultKeepAlive); err != nil {
		return nil, err
	}
	if cfg.LogJSON, err = envBool("LOG_JSON", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EnvOrDefault returns the value of key, or defaultVal when unset or empty.
func EnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return i, nil
}

// envDuration accepts Go durations ("90s", "1h") or bare seconds ("3600").
func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}

// SplitList splits a comma-separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
