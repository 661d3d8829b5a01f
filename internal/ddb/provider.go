package ddb

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultRefresh is the reload interval used when none is configured.
const DefaultRefresh = time.Hour

// Provider resolves addresses against a Store and reloads it periodically.
// If the store cannot be constructed the provider answers every lookup with
// "unknown".
type Provider struct {
	store    Store
	interval time.Duration
	logger   *log.Logger
}

// NewProvider constructs the store through factory and loads it once. A failed
// construction or first load is logged, not returned.
func NewProvider(ctx context.Context, factory StoreFactory, locator string, interval time.Duration, logger *log.Logger) *Provider {
	if interval <= 0 {
		interval = DefaultRefresh
	}
	if logger == nil {
		logger = log.Default()
	}
	p := &Provider{interval: interval, logger: logger}

	store, err := factory(locator)
	if err != nil {
		logger.Error("descriptor store construction failed, lookups disabled", "locator", locator, "err", err)
		return p
	}
	p.store = store

	if err := store.Reload(ctx); err != nil {
		logger.Error("initial descriptor load failed", "url", store.URL(), "err", err)
	}
	logger.Info("created descriptor provider", "url", store.URL(), "refresh", interval)
	return p
}

// Run reloads the store every interval until ctx is cancelled.
func (p *Provider) Run(ctx context.Context) error {
	if p.store == nil {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.logger.Debug("reloading descriptors", "url", p.store.URL())
			if err := p.store.Reload(ctx); err != nil {
				p.logger.Warn("descriptor reload failed", "url", p.store.URL(), "err", err)
			}
		}
	}
}

// Interval returns the refresh interval.
func (p *Provider) Interval() time.Duration { return p.interval }

// Degraded reports whether the provider has no store.
func (p *Provider) Degraded() bool { return p.store == nil }

// FindDescriptor looks up an address, case-insensitively.
func (p *Provider) FindDescriptor(address string) (Descriptor, bool) {
	if p.store == nil {
		return Descriptor{}, false
	}
	return p.store.Descriptor(NormaliseAddress(address))
}
