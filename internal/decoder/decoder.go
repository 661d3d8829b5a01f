// Package decoder is the entry point for turning raw OGN feed lines into
// typed beacons.
//
// The decoder is stateless. Parse and ParseAt may be called from any number of
// goroutines; each call either returns a beacon or one of the ogn sentinel
// errors wrapped with context.
package decoder

import (
	"time"

	"ogn_parser/internal/aprs"
	"ogn_parser/internal/ogn"
	_ "ogn_parser/internal/parsers" // Register beacon variants.
	"ogn_parser/internal/registry"
)

// Parse decodes one feed line, resolving the beacon's time of day against the
// current time.
func Parse(line string) (ogn.Beacon, error) {
	return ParseAt(line, time.Now())
}

// ParseAt decodes one feed line, resolving the beacon's time of day against
// ref. For a given line and ref it always returns the same result.
func ParseAt(line string, ref time.Time) (ogn.Beacon, error) {
	pkt, err := aprs.SplitHeader(line)
	if err != nil {
		return nil, err
	}
	return registry.Default().DispatchFirst(pkt, ref)
}

// Trace describes how a line was decoded.
type Trace struct {
	Packet  *aprs.Packet
	Parsers []*registry.TraceResult
	Beacon  ogn.Beacon
	Err     error
}

// TraceAt decodes a line like ParseAt and records the classification and
// token handling along the way.
func TraceAt(line string, ref time.Time) *Trace {
	tr := &Trace{}

	pkt, err := aprs.SplitHeader(line)
	if err != nil {
		tr.Err = err
		return tr
	}
	tr.Packet = pkt
	tr.Parsers = registry.Default().Trace(pkt, ref)
	tr.Beacon, tr.Err = registry.Default().DispatchFirst(pkt, ref)
	return tr
}
