package ogn

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Builder accumulates decoded fields for one beacon and freezes them into an
// immutable value with Build. A Builder is used by a single parse call and
// discarded afterwards.
type Builder struct {
	kind        string
	fix         Fix
	hasTime     bool
	hasPosition bool

	aircraft AircraftBeacon
	receiver ReceiverBeacon
}

// NewBuilder starts a beacon of the given type (TypeAircraft,
// TypeReceiverPosition or TypeReceiverStatus) for the given source id.
func NewBuilder(kind, id string) *Builder {
	b := &Builder{kind: kind}
	b.fix.ID = id
	switch kind {
	case TypeReceiverStatus:
		b.receiver.ReceiverBeaconType = ReceiverStatus
	case TypeReceiverPosition:
		b.receiver.ReceiverBeaconType = ReceiverPosition
	}
	return b
}

// Kind returns the beacon type being built.
func (b *Builder) Kind() string { return b.kind }

// SetTimestamp records the beacon time.
func (b *Builder) SetTimestamp(t time.Time) {
	b.fix.Timestamp = t.UTC()
	b.hasTime = true
}

// SetPosition records the decoded latitude and longitude in decimal degrees.
func (b *Builder) SetPosition(lat, lon float64) {
	b.fix.Lat = lat
	b.fix.Lon = lon
	b.hasPosition = true
}

// HasPosition reports whether a position has been recorded.
func (b *Builder) HasPosition() bool { return b.hasPosition }

// RefinePosition adds extra precision to the recorded position. The deltas are
// magnitudes in decimal degrees applied away from the equator/meridian, so a
// southern latitude becomes more negative.
func (b *Builder) RefinePosition(dLat, dLon float64) {
	if !b.hasPosition {
		return
	}
	if math.Signbit(b.fix.Lat) {
		b.fix.Lat -= dLat
	} else {
		b.fix.Lat += dLat
	}
	if math.Signbit(b.fix.Lon) {
		b.fix.Lon -= dLon
	} else {
		b.fix.Lon += dLon
	}
}

// SetAltitude records the altitude in metres.
func (b *Builder) SetAltitude(m float64) {
	b.fix.Alt = m
}

// Aircraft returns the aircraft draft for token decoders to fill in.
func (b *Builder) Aircraft() *AircraftBeacon { return &b.aircraft }

// Receiver returns the receiver draft for token decoders to fill in.
func (b *Builder) Receiver() *ReceiverBeacon { return &b.receiver }

// Build freezes the accumulated fields into a beacon value. It fails with
// ErrIncompleteBeacon when the time, or the position of a position beacon,
// was never established.
func (b *Builder) Build() (Beacon, error) {
	if !b.hasTime {
		return nil, fmt.Errorf("%w: no timestamp", ErrIncompleteBeacon)
	}

	switch b.kind {
	case TypeAircraft:
		if !b.hasPosition {
			return nil, fmt.Errorf("%w: no position", ErrIncompleteBeacon)
		}
		out := b.aircraft
		out.Fix = b.fix
		out.HeardAircraftIDs = slices.Clone(b.aircraft.HeardAircraftIDs)
		return out, nil

	case TypeReceiverPosition:
		if !b.hasPosition {
			return nil, fmt.Errorf("%w: no position", ErrIncompleteBeacon)
		}
		out := b.receiver
		out.Fix = b.fix
		return out, nil

	case TypeReceiverStatus:
		out := b.receiver
		out.Fix = b.fix
		return out, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownBeaconVariant, b.kind)
}
