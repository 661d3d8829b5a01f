// Package main provides the ogn-api server for decoded OGN data.
//
// This is a standalone REST API server over the stores written by
// "ogn_parser ingest": the latest aircraft sightings in Redis and PostgreSQL,
// receiver state in PostgreSQL, the raw-line archive in SQLite and the device
// database. Live tracker state is only available from "ogn_parser ingest --api".
//
// Usage:
//
//	ogn-api [options]
//
// Options:
//
//	--pg-host HOST       PostgreSQL host (env: POSTGRES_HOST; empty disables)
//	--pg-port PORT       PostgreSQL port (default: 5432, env: POSTGRES_PORT)
//	--pg-database DB     PostgreSQL database (default: ogn_state, env: POSTGRES_DATABASE)
//	--pg-user USER       PostgreSQL user (default: ogn, env: POSTGRES_USER)
//	--pg-password PASS   PostgreSQL password (default: ogn, env: POSTGRES_PASSWORD)
//	--redis ADDR         Redis address (env: REDIS_ADDR; empty disables)
//	--sqlite PATH        SQLite archive (env: SQLITE_PATH; empty disables)
//	--ddb URL            Device database file, URL or postgres:// mirror (env: DDB_URL)
//	--port N             HTTP port (default: 8081, env: API_PORT)
//	--auth               Enable API key authentication
//	--api-keys KEYS      Comma-separated list of valid API keys (env: API_KEYS)
//
// API Endpoints:
//
//	GET /api/v1/health
//	    Health check endpoint.
//
//	GET /api/v1/descriptor/{address}
//	    Device database entry. Registration details are withheld when the
//	    owner has not allowed identification.
//
//	GET /api/v1/aircraft/{address}
//	    Latest sighting of an aircraft, from Redis first, then PostgreSQL.
//
//	GET /api/v1/receiver/{name}
//	    Latest position and status of a receiver.
//
//	GET /api/v1/beacons?address=...&type=...&failed=true&q=...&limit=N
//	    Archived raw lines with their decoded beacons.
//
//	GET /api/v1/stats
//	    Archive statistics.
//
//	POST /api/v1/decode
//	    Decode posted lines. Body: {"lines": ["..."], "reference_time": "..."}
//	    or plain text, one line per row.
//
// Authentication:
//
//	When --auth is enabled, requests must include an API key via:
//	  - X-API-Key header
//	  - Authorization: Bearer <key> header
//	  - ?api_key=<key> query parameter
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"ogn_parser/internal/api"
	"ogn_parser/internal/cache"
	"ogn_parser/internal/config"
	"ogn_parser/internal/ddb"
	"ogn_parser/internal/logging"
	"ogn_parser/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Options{}).Fatal("invalid configuration", "err", err)
	}
	pg := &cfg.Storage.Postgres

	// PostgreSQL connection flags.
	pflag.StringVar(&pg.Host, "pg-host", pg.Host, "PostgreSQL host")
	pflag.IntVar(&pg.Port, "pg-port", pg.Port, "PostgreSQL port")
	pflag.StringVar(&pg.User, "pg-user", pg.User, "PostgreSQL user")
	pflag.StringVar(&pg.Password, "pg-password", pg.Password, "PostgreSQL password")
	pflag.StringVar(&pg.Database, "pg-database", pg.Database, "PostgreSQL database")

	// Other stores.
	pflag.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address")
	pflag.StringVar(&cfg.Storage.SQLitePath, "sqlite", cfg.Storage.SQLitePath, "SQLite archive path")
	pflag.StringVar(&cfg.DDBURL, "ddb", cfg.DDBURL, "Device database file, URL or postgres:// mirror")

	// API server flags.
	pflag.IntVar(&cfg.APIPort, "port", cfg.APIPort, "HTTP port for API server")
	authEnabled := pflag.Bool("auth", len(cfg.APIKeys) > 0, "Enable API key authentication")
	apiKeys := pflag.String("api-keys", strings.Join(cfg.APIKeys, ","), "Comma-separated list of valid API keys (when auth enabled)")
	pflag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")

	pflag.Parse()

	logger := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, JSON: cfg.LogJSON, Prefix: "ogn-api"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("opening stores", "err", err)
	}
	defer stores.Close()

	factory := ddb.FileStore
	if strings.HasPrefix(cfg.DDBURL, "postgres://") || strings.HasPrefix(cfg.DDBURL, "postgresql://") {
		factory = storage.PostgresDescriptorStore(ctx)
	}
	provider := ddb.NewProvider(ctx, factory, cfg.DDBURL, cfg.DDBRefresh, logger.WithPrefix("ddb"))

	src := api.Sources{Descriptors: provider}
	if cfg.RedisAddr != "" {
		rc, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Fatal("connecting to redis", "addr", cfg.RedisAddr, "err", err)
		}
		defer rc.Close()
		src.Sightings = append(src.Sightings, rc.GetAircraft)
	}
	if stores.PG != nil {
		src.Sightings = append(src.Sightings, stores.PG.GetSighting)
		src.Receivers = stores.PG
	}
	if stores.SQLite != nil {
		src.Archive = stores.SQLite
	}
	if stores.CH != nil {
		src.History = stores.CH
	}

	// Create and run server.
	server := api.NewServer(src, api.Config{
		Port:        cfg.APIPort,
		AuthEnabled: *authEnabled,
		APIKeys:     config.SplitList(*apiKeys),
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return provider.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", "err", err)
	}
}
