package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"ogn_parser/internal/api"
	"ogn_parser/internal/aprs"
	"ogn_parser/internal/cache"
	"ogn_parser/internal/config"
	"ogn_parser/internal/ddb"
	"ogn_parser/internal/feed"
	"ogn_parser/internal/logging"
	"ogn_parser/internal/nats"
	"ogn_parser/internal/pipeline"
	"ogn_parser/internal/state"
	"ogn_parser/internal/storage"
)

const (
	statsInterval = time.Minute
	staleAfter    = 24 * time.Hour
)

func runIngest(args []string) {
	cfg, err := config.Load()
	if err != nil {
		fatalf("Invalid configuration: %v", err)
	}

	fs := pflag.NewFlagSet("ingest", pflag.ExitOnError)
	source := fs.String("source", "aprs", "Line source: aprs, nats or file")
	inPath := fs.StringP("input", "i", "", "Input file for --source file, optionally .gz (default: stdin)")
	fs.StringVar(&cfg.APRS.Server, "server", cfg.APRS.Server, "APRS-IS server host:port")
	fs.StringVar(&cfg.APRS.Filter, "filter", cfg.APRS.Filter, "APRS-IS server-side filter, e.g. r/45/6/200")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Decoder workers (default: number of CPUs)")
	fs.IntVar(&cfg.DedupeSize, "dedupe", cfg.DedupeSize, "Recent lines remembered to drop duplicates; 0 disables")
	publishRaw := fs.Bool("publish-raw", false, "Republish raw APRS-IS lines on the NATS raw subject")
	serveAPI := fs.Bool("api", false, "Serve the REST API, including live tracker state")
	fs.IntVar(&cfg.APIPort, "port", cfg.APIPort, "HTTP port for --api")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	_ = fs.Parse(args)

	logger := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, JSON: cfg.LogJSON, Prefix: "ingest"})

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	stores, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("opening stores", "err", err)
	}
	defer stores.Close()
	if err := stores.CreateSchemas(ctx); err != nil {
		logger.Fatal("creating schemas", "err", err)
	}

	provider := newDescriptorProvider(ctx, cfg, logger)
	tracker := state.NewTracker()
	tracker.OnReceiverNew(func(r state.Receiver) {
		logger.Debug("new receiver", "name", r.Name, "server", r.ServerName)
	})

	sinks := []pipeline.Sink{pipeline.NewTrackerSink(tracker)}
	sources := api.Sources{Descriptors: provider, Tracker: tracker}

	if stores.SQLite != nil {
		sinks = append(sinks, pipeline.NewArchiveSink(stores.SQLite))
		sources.Archive = stores.SQLite
	}
	if stores.CH != nil {
		sinks = append(sinks, pipeline.NewHistorySink(stores.CH, pipeline.DefaultBatchSize))
		sources.History = stores.CH
	}
	if cfg.RedisAddr != "" {
		rc, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Fatal("connecting to redis", "addr", cfg.RedisAddr, "err", err)
		}
		defer rc.Close()
		sinks = append(sinks, pipeline.NewCacheSink(rc, provider))
		sources.Sightings = append(sources.Sightings, rc.GetAircraft)
	}
	if stores.PG != nil {
		sinks = append(sinks, pipeline.NewStateSink(stores.PG, provider))
		sources.Sightings = append(sources.Sightings, stores.PG.GetSighting)
		sources.Receivers = stores.PG
	}

	var nc *nats.Client
	if cfg.NATSURL != "" {
		codec, err := nats.CodecByName(cfg.NATSCodec)
		if err != nil {
			logger.Fatal("nats codec", "err", err)
		}
		nc, err = nats.New(cfg.NATSURL, codec, cfg.NATSBeaconPrefix)
		if err != nil {
			logger.Fatal("connecting to nats", "url", cfg.NATSURL, "err", err)
		}
		defer nc.Close()
		sinks = append(sinks, pipeline.NewPublishSink(nc))
	}

	p, err := pipeline.New(pipeline.Config{Workers: cfg.Workers, DedupeSize: cfg.DedupeSize}, logger, sinks...)
	if err != nil {
		logger.Fatal("creating pipeline", "err", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return provider.Run(gctx) })

	var envs <-chan aprs.Envelope
	switch strings.ToLower(*source) {
	case "aprs":
		raw := make(chan string, 1024)
		client := feed.NewClient(cfg.APRS, nil, logger.WithPrefix("aprs-is"))
		g.Go(func() error {
			defer close(raw)
			return client.Run(gctx, raw)
		})
		envs = pipeline.Lines(gctx, raw)
		if *publishRaw {
			if nc == nil {
				logger.Fatal("--publish-raw needs NATS_URL")
			}
			envs = teeRaw(gctx, envs, nc, cfg.NATSSubjectRaw, logger)
		}

	case "nats":
		if nc == nil {
			logger.Fatal("--source nats needs NATS_URL")
		}
		ch := make(chan aprs.Envelope, 1024)
		sub, err := nc.SubscribeRaw(cfg.NATSSubjectRaw, func(env aprs.Envelope) {
			select {
			case ch <- env:
			case <-gctx.Done():
			}
		})
		if err != nil {
			logger.Fatal("subscribing", "subject", cfg.NATSSubjectRaw, "err", err)
		}
		defer func() { _ = sub.Unsubscribe() }()
		logger.Info("consuming raw lines", "subject", cfg.NATSSubjectRaw)
		envs = ch

	case "file":
		r, err := feed.OpenFile(*inPath)
		if err != nil {
			logger.Fatal("opening input", "err", err)
		}
		defer r.Close()
		raw := make(chan string, 1024)
		g.Go(func() error {
			defer close(raw)
			var lr feed.LineReader
			err := lr.Read(gctx, r, raw)
			if lr.Oversized > 0 {
				logger.Warn("skipped oversized lines", "count", lr.Oversized)
			}
			return err
		})
		envs = pipeline.Lines(gctx, raw)

	default:
		logger.Fatal("unknown source", "source", *source)
	}

	// The pipeline ends when its source is exhausted; that stops everything else.
	g.Go(func() error {
		defer cancel()
		return p.Run(gctx, envs)
	})

	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				snap := p.Stats().Snapshot()
				removed := tracker.CleanupStale(staleAfter, now)
				ts := tracker.GetStats()
				logger.Info("ingest stats", "lines", snap.Lines, "parsed", snap.Parsed, "failed", snap.Failed,
					"duplicates", snap.Duplicates, "aircraft", ts.Aircraft, "receivers", ts.Receivers, "expired", removed)
			}
		}
	})

	if *serveAPI {
		srv := api.NewServer(sources, api.Config{
			Port:        cfg.APIPort,
			AuthEnabled: len(cfg.APIKeys) > 0,
			APIKeys:     cfg.APIKeys,
		}, logger.WithPrefix("api"))
		g.Go(func() error { return srv.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("ingest failed", "err", err)
	}
	logger.Info("ingest finished", "session", p.SessionID())
}

// newDescriptorProvider reads the device database from a file or URL, or from
// the PostgreSQL mirror when DDB_URL is a postgres:// URL.
func newDescriptorProvider(ctx context.Context, cfg *config.Config, logger *log.Logger) *ddb.Provider {
	factory := ddb.FileStore
	if isPostgresURL(cfg.DDBURL) {
		factory = storage.PostgresDescriptorStore(ctx)
	}
	return ddb.NewProvider(ctx, factory, cfg.DDBURL, cfg.DDBRefresh, logger.WithPrefix("ddb"))
}

func isPostgresURL(s string) bool {
	return strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://")
}

// teeRaw republishes every envelope before passing it on.
func teeRaw(ctx context.Context, in <-chan aprs.Envelope, nc *nats.Client, subject string, logger *log.Logger) <-chan aprs.Envelope {
	out := make(chan aprs.Envelope, cap(in))
	go func() {
		defer close(out)
		for env := range in {
			if err := nc.PublishRaw(subject, env); err != nil {
				logger.Warn("raw publish failed", "err", err)
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
