// Package registry provides the beacon variant registry that classifies OGN
// payloads and dispatches them to the matching variant parser.
package registry

import (
	"fmt"
	"sort"
	"time"

	"ogn_parser/internal/aprs"
	"ogn_parser/internal/ogn"
)

// Parser is implemented by each beacon variant parser.
type Parser interface {
	// Name returns the parser's unique identifier.
	Name() string

	// QuickCheck decides from the payload's leading markers whether this
	// parser owns the payload. It must not allocate or use regexes beyond
	// the precompiled marker patterns.
	QuickCheck(payload string) bool

	// Priority determines the order in which variants are tried.
	// Lower number = checked first.
	Priority() int

	// Parse decodes the packet. ref is the receipt time used to resolve the
	// beacon's time of day to a date.
	Parse(pkt *aprs.Packet, ref time.Time) (ogn.Beacon, error)
}

// Registry holds the variant parsers in priority order.
//
// Parsers are registered during package initialisation; after that the
// registry is only read, so dispatch takes no locks.
type Registry struct {
	parsers []Parser
}

// New creates a new Registry instance.
func New() *Registry {
	return &Registry{}
}

// Global default registry.
var defaultRegistry = New()

// Default returns the global registry instance.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a parser to the default registry.
// Called during init() in each parser package.
func Register(p Parser) {
	defaultRegistry.Register(p)
}

// Register adds a parser, keeping the list sorted by priority. It is not safe
// to call concurrently with Classify or DispatchFirst.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
	sort.SliceStable(r.parsers, func(i, j int) bool {
		return r.parsers[i].Priority() < r.parsers[j].Priority()
	})
}

// Classify returns the first parser whose QuickCheck accepts the payload, or
// nil when the payload matches no known variant.
func (r *Registry) Classify(payload string) Parser {
	for _, p := range r.parsers {
		if p.QuickCheck(payload) {
			return p
		}
	}
	return nil
}

// DispatchFirst classifies the packet and parses it with the selected
// variant parser. The selected parser's error is returned as is; other
// variants are not tried.
func (r *Registry) DispatchFirst(pkt *aprs.Packet, ref time.Time) (ogn.Beacon, error) {
	p := r.Classify(pkt.Payload)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ogn.ErrUnknownBeaconVariant, preview(pkt.Payload))
	}
	return p.Parse(pkt, ref)
}

// ParserCount returns the number of registered parsers.
func (r *Registry) ParserCount() int {
	return len(r.parsers)
}

// AllParsers returns the registered parsers in dispatch order.
func (r *Registry) AllParsers() []Parser {
	out := make([]Parser, len(r.parsers))
	copy(out, r.parsers)
	return out
}

// preview shortens a payload for error messages.
func preview(payload string) string {
	const max = 24
	if len(payload) > max {
		return fmt.Sprintf("%q...", payload[:max])
	}
	return fmt.Sprintf("%q", payload)
}
