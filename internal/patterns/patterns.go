// Package patterns provides shared regex patterns and helper functions for OGN parsing.
package patterns

import "regexp"

// Core patterns used across multiple parsers.
var (
	// AddressTokenPattern matches the id<flags><address> token of an aircraft beacon.
	AddressTokenPattern = regexp.MustCompile(`(?:^|\s)id[0-9A-Fa-f]{8}(?:\s|$)`)

	// VersionTokenPattern matches the v<maj>.<min>.<patch> token of a receiver beacon.
	VersionTokenPattern = regexp.MustCompile(`(?:^|\s)v\d+\.\d+\.\d+`)

	// StatusHeaderPattern matches the time-only header of an APRS status payload.
	StatusHeaderPattern = regexp.MustCompile(`^>\d{6}h(?:\s|$)`)

	// QConstructPattern matches APRS-IS q-construct path elements (qAS, qAC, qAR...).
	QConstructPattern = regexp.MustCompile(`^q[A-Z]{2}$`)
)

// Position block layout (offsets into the payload).
const (
	// PositionBlockLen is the length of "/HHMMSSh" + "DDMM.MMN" + table +
	// "DDDMM.MME" + code.
	PositionBlockLen = 27

	// SymbolCodeOffset is the offset of the symbol code character.
	SymbolCodeOffset = PositionBlockLen - 1
)

// ReceiverSymbol is the symbol code ground receivers use in position beacons.
const ReceiverSymbol = '&'
