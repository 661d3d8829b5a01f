// Package position decodes the fixed-width time and position block shared by
// aircraft and receiver position beacons.
package position

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ogn_parser/internal/ogn"
	"ogn_parser/internal/patterns"
)

// Report is a decoded position block.
type Report struct {
	Timestamp   time.Time
	Lat         float64 // Decimal degrees, negative south.
	Lon         float64 // Decimal degrees, negative west.
	SymbolTable byte
	SymbolCode  byte

	HasMotion bool
	Course    int     // Degrees.
	Speed     float64 // km/h.

	Altitude float64 // Metres, 0 when absent.

	// Rest is whatever follows the altitude field, with surrounding spaces
	// trimmed. It holds the extension token tail.
	Rest string
}

// Formats for the variable part that follows the fixed 27-character block.
var Formats = []patterns.Format{
	// Optional course/speed then optional altitude.
	// Example: 303/064/A=001617 !W29! id0B202E5D
	{
		Name:    "motion_altitude",
		Pattern: `^(?:(?P<course>{COURSE})/(?P<speed>{SPEED}))?(?:/A=(?P<alt>{ALT}))?`,
		Fields:  []string{"course", "speed", "alt"},
	},
}

var compiler = patterns.NewCompiler(Formats, nil).MustCompile()

// Decode parses a payload beginning with "/HHMMSSh". ref supplies the date the
// time of day is resolved against.
//
// It fails with ogn.ErrIncompleteBeacon when the payload is too short to hold
// the block, and with ogn.ErrMalformedPosition when a digit group or a
// hemisphere letter is invalid.
func Decode(payload string, ref time.Time) (Report, error) {
	var r Report

	if len(payload) < patterns.PositionBlockLen {
		return r, fmt.Errorf("%w: position block truncated (%d chars)", ogn.ErrIncompleteBeacon, len(payload))
	}
	if payload[0] != '/' {
		return r, fmt.Errorf("%w: expected '/' got %q", ogn.ErrMalformedPosition, payload[0])
	}
	if payload[7] != 'h' {
		return r, fmt.Errorf("%w: unsupported time format %q", ogn.ErrMalformedPosition, payload[7])
	}

	ts, err := DecodeTime(payload[1:7], ref)
	if err != nil {
		return r, err
	}
	r.Timestamp = ts

	if r.Lat, err = patterns.ParseLatitude(payload[8:15], payload[15]); err != nil {
		return r, fmt.Errorf("%w: latitude: %w", ogn.ErrMalformedPosition, err)
	}
	r.SymbolTable = payload[16]
	if r.Lon, err = patterns.ParseLongitude(payload[17:25], payload[25]); err != nil {
		return r, fmt.Errorf("%w: longitude: %w", ogn.ErrMalformedPosition, err)
	}
	r.SymbolCode = payload[patterns.SymbolCodeOffset]

	rest := payload[patterns.PositionBlockLen:]
	if m := compiler.Parse(rest); m != nil {
		if course := m.GetCapture("course", ""); course != "" {
			r.HasMotion = true
			r.Course, _ = strconv.Atoi(course)
			knots, _ := strconv.Atoi(m.GetCapture("speed", "0"))
			r.Speed = patterns.KnotsToKmh(float64(knots))
		}
		if alt := m.GetCapture("alt", ""); alt != "" {
			feet, _ := strconv.Atoi(alt)
			r.Altitude = patterns.FeetToMetres(float64(feet))
		}
		rest = rest[len(m.Text):]
	}
	r.Rest = strings.TrimSpace(rest)

	return r, nil
}

// DecodeTime parses a six digit HHMMSS time of day and places it on the UTC
// day nearest to ref: yesterday, today or tomorrow, whichever lies closest.
// Beacons stamped just before midnight and received just after it therefore
// keep the earlier date.
func DecodeTime(hhmmss string, ref time.Time) (time.Time, error) {
	if len(hhmmss) != 6 {
		return time.Time{}, fmt.Errorf("%w: time %q", ogn.ErrMalformedPosition, hhmmss)
	}
	for i := 0; i < len(hhmmss); i++ {
		if hhmmss[i] < '0' || hhmmss[i] > '9' {
			return time.Time{}, fmt.Errorf("%w: time %q", ogn.ErrMalformedPosition, hhmmss)
		}
	}

	hh, _ := strconv.Atoi(hhmmss[0:2])
	mm, _ := strconv.Atoi(hhmmss[2:4])
	ss, _ := strconv.Atoi(hhmmss[4:6])
	if hh > 23 || mm > 59 || ss > 59 {
		return time.Time{}, fmt.Errorf("%w: time %q out of range", ogn.ErrMalformedPosition, hhmmss)
	}

	ref = ref.UTC()
	best := time.Date(ref.Year(), ref.Month(), ref.Day(), hh, mm, ss, 0, time.UTC)
	bestDiff := absDuration(best.Sub(ref))
	for _, days := range []int{-1, 1} {
		candidate := best.AddDate(0, 0, days)
		if diff := absDuration(candidate.Sub(ref)); diff < bestDiff {
			best, bestDiff = candidate, diff
		}
	}
	return best, nil
}

// Apply copies the report into a beacon builder.
func (r Report) Apply(b *ogn.Builder) {
	b.SetTimestamp(r.Timestamp)
	b.SetPosition(r.Lat, r.Lon)
	b.SetAltitude(r.Altitude)
	if r.HasMotion {
		ac := b.Aircraft()
		ac.Track = r.Course
		ac.GroundSpeed = r.Speed
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
