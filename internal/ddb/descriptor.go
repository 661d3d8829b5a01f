// Package ddb resolves aircraft addresses to registration details from the
// OGN device database.
package ddb

import (
	"context"
	"strings"
)

// Device types used in the DDB device_type column.
const (
	DeviceFLARM = "F"
	DeviceICAO  = "I"
	DeviceOGN   = "O"
)

// Descriptor describes one registered device.
type Descriptor struct {
	Address      string `json:"address"`
	DeviceType   string `json:"device_type"`
	Model        string `json:"model"`
	Registration string `json:"registration"`
	CN           string `json:"cn"`
	Tracked      bool   `json:"tracked"`
	Identified   bool   `json:"identified"`
}

// Known reports whether the descriptor came from a database entry.
func (d Descriptor) Known() bool { return d.Address != "" }

// Store is a reloadable source of descriptors.
type Store interface {
	// Reload replaces the store contents. A failed reload keeps the previous
	// contents.
	Reload(ctx context.Context) error
	// URL names where the store loads from.
	URL() string
	// Descriptor looks up an upper-case hex address.
	Descriptor(address string) (Descriptor, bool)
}

// StoreFactory constructs a store for a locator (path, URL or DSN).
type StoreFactory func(locator string) (Store, error)

// NormaliseAddress upper-cases and trims an address for lookups.
func NormaliseAddress(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}

// MemoryStore is a fixed in-memory store.
type MemoryStore struct {
	byAddr map[string]Descriptor
}

// NewMemoryStore returns a store holding descs.
func NewMemoryStore(descs ...Descriptor) *MemoryStore {
	m := &MemoryStore{byAddr: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		d.Address = NormaliseAddress(d.Address)
		m.byAddr[d.Address] = d
	}
	return m
}

func (m *MemoryStore) Reload(context.Context) error { return nil }

func (m *MemoryStore) URL() string { return "memory" }

func (m *MemoryStore) Descriptor(address string) (Descriptor, bool) {
	d, ok := m.byAddr[address]
	return d, ok
}
