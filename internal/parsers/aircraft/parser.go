// Package aircraft parses position beacons relayed for aircraft transponders
// (FLARM, OGN trackers, ICAO transponders, FANET devices).
package aircraft

import (
	"strings"
	"time"

	"ogn_parser/internal/aprs"
	"ogn_parser/internal/ogn"
	"ogn_parser/internal/patterns"
	"ogn_parser/internal/position"
	"ogn_parser/internal/registry"
	"ogn_parser/internal/tokens"
)

// Parser parses aircraft position beacons.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string  { return "aircraft" }
func (p *Parser) Priority() int { return 30 }

// QuickCheck accepts position payloads that carry an id token.
func (p *Parser) QuickCheck(payload string) bool {
	return strings.HasPrefix(payload, "/") && patterns.HasAddressToken(payload)
}

func (p *Parser) Parse(pkt *aprs.Packet, ref time.Time) (ogn.Beacon, error) {
	b, rest, err := p.decode(pkt, ref)
	if err != nil {
		return nil, err
	}
	tokens.Apply(rest, b)
	return b.Build()
}

// ParseWithTrace parses the packet and records how each tail token was handled.
func (p *Parser) ParseWithTrace(pkt *aprs.Packet, ref time.Time) *registry.TraceResult {
	trace := &registry.TraceResult{ParserName: p.Name()}

	b, rest, err := p.decode(pkt, ref)
	if err != nil {
		trace.Err = err
		return trace
	}
	trace.Tokens = tokens.Trace(rest)
	tokens.Apply(rest, b)

	trace.Beacon, trace.Err = b.Build()
	trace.Matched = trace.Err == nil
	return trace
}

func (p *Parser) decode(pkt *aprs.Packet, ref time.Time) (*ogn.Builder, string, error) {
	r, err := position.Decode(pkt.Payload, ref)
	if err != nil {
		return nil, "", err
	}

	b := ogn.NewBuilder(ogn.TypeAircraft, pkt.Source)
	r.Apply(b)
	b.Aircraft().ReceiverName = pkt.Receiver()
	return b, r.Rest, nil
}
