// Package patterns provides shared regex patterns and helper functions for OGN parsing.
// This file contains coordinate conversion utilities.

package patterns

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrBadCoordinate is returned when a coordinate field cannot be decoded.
var ErrBadCoordinate = errors.New("bad coordinate")

// DMSToDeg converts an APRS degrees+decimal-minutes value (e.g. 4429.25 for
// 44°29.25') to decimal degrees.
func DMSToDeg(dms float64) float64 {
	deg := math.Trunc(dms / 100)
	min := dms - deg*100
	return deg + min/60.0
}

// DegToDMS is the inverse of DMSToDeg: 44.4875 becomes 4429.25.
func DegToDMS(deg float64) float64 {
	whole := math.Trunc(deg)
	return whole*100 + (deg-whole)*60.0
}

// ParseDMSCoord parses an APRS coordinate field in DDMM.MM (latitude, degDigits=2)
// or DDDMM.MM (longitude, degDigits=3) form and returns signed decimal degrees.
// dir is the hemisphere letter; S and W result in negative values.
//
// The minutes part may carry any number of decimals. The !Wab! precision
// digits are not part of this field; ogn.Builder.RefinePosition adds them to
// the decoded value.
func ParseDMSCoord(s string, degDigits int, dir byte) (float64, error) {
	var negative bool
	switch {
	case degDigits == 2 && dir == 'N', degDigits == 3 && dir == 'E':
	case degDigits == 2 && dir == 'S', degDigits == 3 && dir == 'W':
		negative = true
	default:
		return 0, fmt.Errorf("%w: hemisphere %q", ErrBadCoordinate, dir)
	}

	whole, frac, ok := strings.Cut(s, ".")
	if !ok || len(whole) != degDigits+2 || frac == "" {
		return 0, fmt.Errorf("%w: %q", ErrBadCoordinate, s)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrBadCoordinate, s)
	}

	deg, _ := strconv.Atoi(whole[:degDigits])
	min, err := strconv.ParseFloat(whole[degDigits:]+"."+frac, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadCoordinate, s)
	}
	if min >= 60 {
		return 0, fmt.Errorf("%w: minutes out of range in %q", ErrBadCoordinate, s)
	}

	limit := 90.0
	if degDigits == 3 {
		limit = 180.0
	}
	result := float64(deg) + min/60.0
	if result > limit {
		return 0, fmt.Errorf("%w: %q exceeds %v degrees", ErrBadCoordinate, s, limit)
	}

	if negative {
		result = -result
	}
	return result, nil
}

// ParseLatitude parses a DDMM.MM latitude with its N/S hemisphere.
func ParseLatitude(value string, dir byte) (float64, error) {
	return ParseDMSCoord(value, 2, dir)
}

// ParseLongitude parses a DDDMM.MM longitude with its E/W hemisphere.
func ParseLongitude(value string, dir byte) (float64, error) {
	return ParseDMSCoord(value, 3, dir)
}

// FormatLatitude encodes decimal degrees into the APRS DDMM.MM form and hemisphere.
func FormatLatitude(lat float64) (string, byte) {
	dir := byte('N')
	if lat < 0 {
		dir = 'S'
		lat = -lat
	}
	return formatDMS(lat, 2), dir
}

// FormatLongitude encodes decimal degrees into the APRS DDDMM.MM form and hemisphere.
func FormatLongitude(lon float64) (string, byte) {
	dir := byte('E')
	if lon < 0 {
		dir = 'W'
		lon = -lon
	}
	return formatDMS(lon, 3), dir
}

func formatDMS(deg float64, degDigits int) string {
	// Work in hundredths of a minute so rounding never yields 60.00 minutes.
	total := int(math.Round(deg * 60 * 100))
	d := total / 6000
	m := float64(total%6000) / 100
	return fmt.Sprintf("%0*d%05.2f", degDigits, d, m)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
