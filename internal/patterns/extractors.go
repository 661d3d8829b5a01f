// Package patterns provides extraction functions for OGN payload inspection.
package patterns

import (
	"strings"
)

// HasAddressToken reports whether the text carries an aircraft id token.
func HasAddressToken(text string) bool {
	return strings.Contains(text, "id") && AddressTokenPattern.MatchString(text)
}

// HasVersionToken reports whether the text carries a receiver version token.
func HasVersionToken(text string) bool {
	return VersionTokenPattern.MatchString(text)
}

// IsReceiverPosition reports whether a position payload carries the receiver
// symbol immediately followed by the altitude field.
func IsReceiverPosition(payload string) bool {
	if len(payload) < PositionBlockLen+3 || payload[0] != '/' {
		return false
	}
	return payload[SymbolCodeOffset] == ReceiverSymbol &&
		strings.HasPrefix(payload[PositionBlockLen:], "/A=")
}
