// Package patterns provides shared regex patterns and helper functions for OGN parsing.
// This file contains grok-style base patterns for use with the Compiler.

package patterns

// BasePatterns defines reusable regex components for grok-style pattern composition.
// These are referenced in format patterns using {PATTERN_NAME} syntax.
var BasePatterns = map[string]string{
	// Numbers.
	"INT":  `\d+`,
	"SINT": `[+-]\d+`,
	"DEC":  `\d+\.\d+`,
	"SDEC": `[+-]\d+\.\d+`,

	// Hexadecimal identifiers.
	"HEX2": `[0-9A-Fa-f]{2}`,
	"HEX4": `[0-9A-Fa-f]{4}`,
	"HEX6": `[0-9A-Fa-f]{6}`,

	// Time of day.
	"TIME6": `\d{6}`, // HHMMSS

	// Coordinates - degrees and decimal minutes.
	"LAT_DIR": `[NS]`,
	"LON_DIR": `[EW]`,
	"LAT_DM":  `\d{4}\.\d{2}`, // DDMM.MM
	"LON_DM":  `\d{5}\.\d{2}`, // DDDMM.MM

	// Motion.
	"COURSE": `\d{3}`,
	"SPEED":  `\d{3}`,
	"ALT":    `-?\d{5,6}`, // Feet

	// Receiver software.
	"VERSION":  `\d+\.\d+\.\d+`,
	"PLATFORM": `[A-Za-z0-9_-]+`,
}
