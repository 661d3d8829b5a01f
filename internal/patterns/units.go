package patterns

// Unit conversion factors used by the OGN/APRS format.
const (
	MetresPerFoot = 0.3048
	KmhPerKnot    = 1.852
)

// FeetToMetres converts feet to metres.
func FeetToMetres(ft float64) float64 {
	return ft * MetresPerFoot
}

// KnotsToKmh converts knots to kilometres per hour.
func KnotsToKmh(kt float64) float64 {
	return kt * KmhPerKnot
}

// FpmToMs converts a vertical speed in feet per minute to metres per second.
func FpmToMs(fpm float64) float64 {
	return fpm * MetresPerFoot / 60.0
}
