package ogn

import "errors"

// Parse failure kinds. Each is fatal to a single parse call only.
var (
	// ErrMalformedHeader means the SOURCE>ROUTE:PAYLOAD delimiters are missing
	// or the source is empty.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrUnknownBeaconVariant means the payload matches no known beacon variant.
	ErrUnknownBeaconVariant = errors.New("unknown beacon variant")

	// ErrMalformedPosition means a time or coordinate field has non-numeric or
	// out-of-range digits, or a bad hemisphere letter.
	ErrMalformedPosition = errors.New("malformed position")

	// ErrIncompleteBeacon means the time or position could not be established.
	ErrIncompleteBeacon = errors.New("incomplete beacon")
)

// Kind returns a short name for the failure kind wrapped by err, suitable for
// metrics labels. It returns "other" for errors that are not parse failures.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, ErrUnknownBeaconVariant):
		return "unknown_variant"
	case errors.Is(err, ErrMalformedPosition):
		return "malformed_position"
	case errors.Is(err, ErrIncompleteBeacon):
		return "incomplete"
	default:
		return "other"
	}
}
