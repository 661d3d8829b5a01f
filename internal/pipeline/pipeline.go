// Package pipeline decodes feed lines on a pool of workers and hands each
// result to a set of sinks.
//
// Lines are processed concurrently and sinks see events in no particular
// order. Duplicate lines, as produced when several receivers gate the same
// packet into APRS-IS, are dropped before decoding when a dedupe cache is
// configured.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"ogn_parser/internal/aprs"
	"ogn_parser/internal/decoder"
	"ogn_parser/internal/ogn"
)

// Event is the outcome of decoding one feed line.
type Event struct {
	SessionID  string
	ReceivedAt time.Time
	Line       string
	Beacon     ogn.Beacon // Nil when Err is set.
	Err        error
}

// Sink consumes events. Handle may be called from several goroutines at once.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

// Flusher is implemented by sinks that buffer events. Flush is called once
// after the input is exhausted.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Config controls the worker pool.
type Config struct {
	Workers    int    // Defaults to GOMAXPROCS.
	DedupeSize int    // Recent lines remembered for duplicate filtering; 0 disables it.
	SessionID  string // Defaults to a random UUID.
}

// Pipeline fans lines out to decoder workers.
type Pipeline struct {
	cfg    Config
	sinks  []Sink
	recent *lru.Cache[string, struct{}]
	stats  *Stats
	logger *log.Logger
}

// New creates a pipeline delivering to sinks.
func New(cfg Config, logger *log.Logger, sinks ...Sink) (*Pipeline, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if logger == nil {
		logger = log.Default()
	}

	p := &Pipeline{cfg: cfg, sinks: sinks, stats: NewStats(), logger: logger}
	if cfg.DedupeSize > 0 {
		recent, err := lru.New[string, struct{}](cfg.DedupeSize)
		if err != nil {
			return nil, fmt.Errorf("create dedupe cache: %w", err)
		}
		p.recent = recent
	}
	return p, nil
}

// SessionID identifies this run in archived rows.
func (p *Pipeline) SessionID() string { return p.cfg.SessionID }

// Stats returns the live counters.
func (p *Pipeline) Stats() *Stats { return p.stats }

// Run processes envelopes from in until it is closed or ctx is cancelled,
// then flushes buffering sinks. Sink errors are counted and logged; they do
// not stop the pipeline.
func (p *Pipeline) Run(ctx context.Context, in <-chan aprs.Envelope) error {
	p.logger.Info("pipeline started", "session", p.cfg.SessionID, "workers", p.cfg.Workers, "sinks", len(p.sinks))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case env, ok := <-in:
					if !ok {
						return nil
					}
					p.process(gctx, env)
				}
			}
		})
	}
	err := g.Wait()

	// Flush with a fresh context so buffered rows survive cancellation.
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	for _, s := range p.sinks {
		f, ok := s.(Flusher)
		if !ok {
			continue
		}
		if ferr := f.Flush(flushCtx); ferr != nil {
			p.stats.sinkError(s.Name())
			p.logger.Error("flush failed", "sink", s.Name(), "err", ferr)
		}
	}

	snap := p.stats.Snapshot()
	p.logger.Info("pipeline stopped", "lines", snap.Lines, "parsed", snap.Parsed, "failed", snap.Failed, "duplicates", snap.Duplicates)
	return err
}

func (p *Pipeline) process(ctx context.Context, env aprs.Envelope) {
	p.stats.line()
	if p.recent != nil {
		if seen, _ := p.recent.ContainsOrAdd(env.Line, struct{}{}); seen {
			p.stats.duplicate()
			return
		}
	}

	ev := Event{
		SessionID:  p.cfg.SessionID,
		ReceivedAt: env.ReceivedAt.Time,
		Line:       env.Line,
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}
	ev.Beacon, ev.Err = decoder.ParseAt(env.Line, ev.ReceivedAt)
	if ev.Err != nil {
		p.stats.failed(ogn.Kind(ev.Err))
		p.logger.Debug("decode failed", "kind", ogn.Kind(ev.Err), "err", ev.Err, "line", env.Line)
	} else {
		p.stats.parsed(ev.Beacon.Type())
	}

	for _, s := range p.sinks {
		if err := s.Handle(ctx, ev); err != nil {
			p.stats.sinkError(s.Name())
			p.logger.Warn("sink failed", "sink", s.Name(), "err", err)
		}
	}
}

// Lines wraps plain feed lines into envelopes stamped with the time they were
// read. The returned channel is closed when in is closed or ctx is done.
func Lines(ctx context.Context, in <-chan string) <-chan aprs.Envelope {
	out := make(chan aprs.Envelope, cap(in))
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-in:
				if !ok {
					return
				}
				env := aprs.Envelope{Line: line, ReceivedAt: aprs.FlexTime{Time: time.Now().UTC()}}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
