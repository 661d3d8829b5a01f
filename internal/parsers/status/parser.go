// Package status parses receiver status beacons: a time-only header followed
// by software version and station health tokens.
package status

import (
	"fmt"
	"time"

	"ogn_parser/internal/aprs"
	"ogn_parser/internal/ogn"
	"ogn_parser/internal/patterns"
	"ogn_parser/internal/position"
	"ogn_parser/internal/registry"
	"ogn_parser/internal/tokens"
)

// headerLen is the length of ">HHMMSSh".
const headerLen = 8

// Parser parses receiver status beacons.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string  { return "status" }
func (p *Parser) Priority() int { return 20 }

// QuickCheck accepts ">HHMMSSh" payloads that carry a version token.
func (p *Parser) QuickCheck(payload string) bool {
	if len(payload) < headerLen || payload[0] != '>' {
		return false
	}
	return patterns.StatusHeaderPattern.MatchString(payload) &&
		patterns.HasVersionToken(payload[headerLen:])
}

func (p *Parser) Parse(pkt *aprs.Packet, ref time.Time) (ogn.Beacon, error) {
	if len(pkt.Payload) < headerLen {
		return nil, fmt.Errorf("%w: status header truncated", ogn.ErrIncompleteBeacon)
	}

	ts, err := position.DecodeTime(pkt.Payload[1:7], ref)
	if err != nil {
		return nil, err
	}

	b := ogn.NewBuilder(ogn.TypeReceiverStatus, pkt.Source)
	b.SetTimestamp(ts)
	b.Receiver().ServerName = pkt.Receiver()
	tokens.Apply(pkt.Payload[headerLen:], b)
	return b.Build()
}

// ParseWithTrace parses the packet and records how each tail token was handled.
func (p *Parser) ParseWithTrace(pkt *aprs.Packet, ref time.Time) *registry.TraceResult {
	trace := &registry.TraceResult{ParserName: p.Name()}

	trace.Beacon, trace.Err = p.Parse(pkt, ref)
	trace.Matched = trace.Err == nil
	if len(pkt.Payload) >= headerLen {
		trace.Tokens = tokens.Trace(pkt.Payload[headerLen:])
	}
	return trace
}
