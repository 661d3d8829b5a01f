// Package aprs provides the APRS-IS line types the OGN feed is carried in.
package aprs

import (
	"fmt"
	"strings"

	"ogn_parser/internal/ogn"
	"ogn_parser/internal/patterns"
)

// Packet is one APRS-IS line split into its header parts.
// Lines look like SOURCE>DEST,PATH1,PATH2:PAYLOAD.
type Packet struct {
	Raw     string   `json:"raw"`
	Source  string   `json:"source"`
	Path    []string `json:"path"` // Destination first, then digipeater/q-construct elements.
	Payload string   `json:"payload"`
}

// SplitHeader splits a raw line on the first '>' and the first ':' after it.
// It fails with ogn.ErrMalformedHeader when either delimiter is missing or the
// source is empty.
func SplitHeader(line string) (*Packet, error) {
	line = strings.TrimRight(line, "\r\n")

	gt := strings.IndexByte(line, '>')
	if gt < 0 {
		return nil, fmt.Errorf("%w: missing '>'", ogn.ErrMalformedHeader)
	}
	if gt == 0 {
		return nil, fmt.Errorf("%w: empty source", ogn.ErrMalformedHeader)
	}

	colon := strings.IndexByte(line[gt+1:], ':')
	if colon < 0 {
		return nil, fmt.Errorf("%w: missing ':'", ogn.ErrMalformedHeader)
	}
	colon += gt + 1

	pkt := &Packet{
		Raw:     line,
		Source:  line[:gt],
		Payload: line[colon+1:],
	}
	if route := line[gt+1 : colon]; route != "" {
		pkt.Path = strings.Split(route, ",")
	}
	return pkt, nil
}

// Destination returns the APRS destination callsign (e.g. "APRS", "OGNFNT").
func (p *Packet) Destination() string {
	if len(p.Path) == 0 {
		return ""
	}
	return p.Path[0]
}

// Receiver returns the name of the station that gated the packet into
// APRS-IS: the path element following the q-construct, or the last path
// element when there is no q-construct.
func (p *Packet) Receiver() string {
	for i, elem := range p.Path {
		if patterns.QConstructPattern.MatchString(elem) && i+1 < len(p.Path) {
			return strings.TrimSuffix(p.Path[i+1], "*")
		}
	}
	if len(p.Path) == 0 {
		return ""
	}
	return strings.TrimSuffix(p.Path[len(p.Path)-1], "*")
}

// IsComment reports whether the line is an APRS-IS server comment, such as
// the "# aprsc 2.1.4" banner or keep-alive lines.
func IsComment(line string) bool {
	return strings.HasPrefix(line, "#")
}
