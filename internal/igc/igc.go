// Package igc derives flight-log identifiers from aircraft beacons.
package igc

import (
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"

	"ogn_parser/internal/ddb"
	"ogn_parser/internal/ogn"
)

// DefaultDatePattern prefixes log file names.
const DefaultDatePattern = "%Y-%m-%d"

// LogFileID returns the beacon id, extended with the registration and
// competition number of a known descriptor: ID_REG_CN, ID_REG or ID_CN.
func LogFileID(b ogn.AircraftBeacon, desc ddb.Descriptor) string {
	id := b.ID
	if !desc.Known() {
		return id
	}

	var parts []string
	if desc.Registration != "" {
		parts = append(parts, desc.Registration)
	}
	if desc.CN != "" {
		parts = append(parts, desc.CN)
	}
	if len(parts) == 0 {
		return id
	}
	return id + "_" + strings.Join(parts, "_")
}

// LogFileName returns "<date>_<id>.IGC" with the date formatted from the
// beacon timestamp by a strftime pattern.
func LogFileName(pattern string, b ogn.AircraftBeacon, desc ddb.Descriptor) (string, error) {
	if pattern == "" {
		pattern = DefaultDatePattern
	}
	date, err := strftime.Format(pattern, b.Timestamp.In(time.UTC))
	if err != nil {
		return "", fmt.Errorf("format log date %q: %w", pattern, err)
	}
	return date + "_" + LogFileID(b, desc) + ".IGC", nil
}
