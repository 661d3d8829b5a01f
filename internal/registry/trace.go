// Package registry provides tracing interfaces for parser debugging.
package registry

import (
	"time"

	"ogn_parser/internal/aprs"
	"ogn_parser/internal/ogn"
	"ogn_parser/internal/tokens"
)

// TraceResult contains trace information from a parser's attempt to parse a packet.
type TraceResult struct {
	ParserName string              // Name of the parser.
	QuickCheck *QuickCheck         // QuickCheck result.
	Tokens     []tokens.TokenTrace // Extension token handling, in tail order.
	Matched    bool                // Whether the parser produced a beacon.
	Beacon     ogn.Beacon          // The beacon, if Matched.
	Err        error               // Parse failure, if any.
}

// QuickCheck contains the result of a parser's quick check.
type QuickCheck struct {
	Passed bool   // Whether the quick check passed.
	Reason string // Optional reason for the result.
}

// Traceable is implemented by parsers that support debug tracing.
// This allows the decode command to show which tokens were taken by which
// matcher and which were dropped.
type Traceable interface {
	// ParseWithTrace parses the packet and returns detailed trace information.
	ParseWithTrace(pkt *aprs.Packet, ref time.Time) *TraceResult
}

// Trace runs every registered parser's quick check against the packet and a
// traced parse for the parser that would be selected by DispatchFirst.
func (r *Registry) Trace(pkt *aprs.Packet, ref time.Time) []*TraceResult {
	results := make([]*TraceResult, 0, len(r.parsers))
	selected := false
	for _, p := range r.parsers {
		passed := p.QuickCheck(pkt.Payload)
		if !passed || selected {
			reason := "payload markers do not match"
			if passed {
				reason = "shadowed by a higher priority variant"
			}
			results = append(results, &TraceResult{
				ParserName: p.Name(),
				QuickCheck: &QuickCheck{Passed: passed, Reason: reason},
			})
			continue
		}
		selected = true

		var tr *TraceResult
		if tp, ok := p.(Traceable); ok {
			tr = tp.ParseWithTrace(pkt, ref)
		} else {
			beacon, err := p.Parse(pkt, ref)
			tr = &TraceResult{ParserName: p.Name(), Beacon: beacon, Err: err, Matched: err == nil}
		}
		tr.QuickCheck = &QuickCheck{Passed: true}
		results = append(results, tr)
	}
	return results
}
