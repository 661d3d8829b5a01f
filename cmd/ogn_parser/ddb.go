package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"ogn_parser/internal/config"
	"ogn_parser/internal/ddb"
	"ogn_parser/internal/logging"
	"ogn_parser/internal/storage"
)

func runDDBSync(args []string) {
	cfg, err := config.Load()
	if err != nil {
		fatalf("Invalid configuration: %v", err)
	}

	fs := pflag.NewFlagSet("ddb-sync", pflag.ExitOnError)
	fs.StringVar(&cfg.DDBURL, "ddb", cfg.DDBURL, "Device database file or URL")
	_ = fs.Parse(args)

	logger := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, JSON: cfg.LogJSON, Prefix: "ddb-sync"})
	ctx := context.Background()

	if cfg.Storage.Postgres.Host == "" {
		fatalf("POSTGRES_HOST is not set")
	}
	if isPostgresURL(cfg.DDBURL) {
		fatalf("--ddb must be a file or HTTP URL, not the database being synced")
	}

	pg, err := storage.OpenPostgres(ctx, cfg.Storage.Postgres)
	if err != nil {
		fatalf("Error opening PostgreSQL: %v", err)
	}
	defer pg.Close()
	if err := pg.CreateSchema(ctx); err != nil {
		fatalf("Error creating schema: %v", err)
	}

	src, err := ddb.NewFileDB(cfg.DDBURL)
	if err != nil {
		fatalf("Invalid device database: %v", err)
	}
	if err := src.Reload(ctx); err != nil {
		fatalf("Error loading device database: %v", err)
	}

	n, err := pg.SyncDescriptors(ctx, src.All())
	if err != nil {
		fatalf("Error syncing descriptors: %v", err)
	}
	logger.Info("descriptors synced", "source", src.URL(), "count", n)
}

func runLookup(args []string) {
	fs := pflag.NewFlagSet("lookup", pflag.ExitOnError)
	locator := fs.String("ddb", config.EnvOrDefault("DDB_URL", ddb.DefaultURL), "Device database file, URL or postgres:// mirror")
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		fatalf("Usage: ogn_parser lookup [--ddb URL] ADDRESS...")
	}

	ctx := context.Background()
	factory := ddb.FileStore
	if isPostgresURL(*locator) {
		factory = storage.PostgresDescriptorStore(ctx)
	}
	provider := ddb.NewProvider(ctx, factory, *locator, 0, logging.Discard())
	if provider.Degraded() {
		fatalf("Device database %s is unavailable", *locator)
	}

	enc := json.NewEncoder(os.Stdout)
	missing := 0
	for _, addr := range fs.Args() {
		desc, ok := provider.FindDescriptor(addr)
		if !ok {
			fmt.Fprintf(os.Stderr, "%s: not found\n", ddb.NormaliseAddress(addr))
			missing++
			continue
		}
		_ = enc.Encode(desc)
	}
	if missing > 0 {
		os.Exit(1)
	}
}
