package storage

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"

	"ogn_parser/internal/ddb"
)

// descriptorLister is the part of PostgresDB used by PostgresDescriptors.
type descriptorLister interface {
	ListDescriptors(ctx context.Context) ([]ddb.Descriptor, error)
}

// PostgresDescriptors serves descriptor lookups from the descriptors table.
// Reload snapshots the table into memory so lookups never hit the database.
type PostgresDescriptors struct {
	src     descriptorLister
	locator string
	index   atomic.Pointer[map[string]ddb.Descriptor]
}

// NewPostgresDescriptors returns a store reading from src.
func NewPostgresDescriptors(src descriptorLister, locator string) *PostgresDescriptors {
	p := &PostgresDescriptors{src: src, locator: redact(locator)}
	empty := map[string]ddb.Descriptor{}
	p.index.Store(&empty)
	return p
}

// PostgresDescriptorStore is a ddb.StoreFactory taking a postgres:// URL.
func PostgresDescriptorStore(ctx context.Context) ddb.StoreFactory {
	return func(locator string) (ddb.Store, error) {
		db, err := OpenPostgresURL(ctx, locator)
		if err != nil {
			return nil, err
		}
		return NewPostgresDescriptors(db, locator), nil
	}
}

func (p *PostgresDescriptors) URL() string { return p.locator }

func (p *PostgresDescriptors) Reload(ctx context.Context) error {
	descs, err := p.src.ListDescriptors(ctx)
	if err != nil {
		return fmt.Errorf("load descriptors: %w", err)
	}
	idx := make(map[string]ddb.Descriptor, len(descs))
	for _, d := range descs {
		idx[ddb.NormaliseAddress(d.Address)] = d
	}
	p.index.Store(&idx)
	return nil
}

func (p *PostgresDescriptors) Descriptor(address string) (ddb.Descriptor, bool) {
	d, ok := (*p.index.Load())[address]
	return d, ok
}

// redact hides the password of a connection URL.
func redact(locator string) string {
	u, err := url.Parse(locator)
	if err != nil || u.User == nil {
		return locator
	}
	return u.Redacted()
}
