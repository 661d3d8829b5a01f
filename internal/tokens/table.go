// Package tokens decodes the whitespace-delimited extension tokens that follow
// the fixed part of an OGN beacon.
package tokens

import (
	"strconv"
	"strings"

	"ogn_parser/internal/ogn"
	"ogn_parser/internal/patterns"
)

// Matcher binds one token pattern to the code that stores its value.
type Matcher struct {
	Name    string
	Pattern string // Anchored, with {PLACEHOLDER} references.
	Apply   func(m *patterns.Match, b *ogn.Builder)
}

// Id token flag byte layout: STttttaa.
const (
	flagStealth      = 0x80
	flagNoTracking   = 0x40
	aircraftTypeMask = 0x3C
	addressTypeMask  = 0x03
)

// Table is evaluated in order for every token; the first match wins.
var Table = []Matcher{
	// Aircraft tokens.
	{
		// id05C821EA
		Name:    "address",
		Pattern: `^id(?P<flags>{HEX2})(?P<address>{HEX6})$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			flags, _ := strconv.ParseUint(m.Captures["flags"], 16, 8)
			ac := b.Aircraft()
			ac.Stealth = flags&flagStealth != 0
			ac.NoTracking = flags&flagNoTracking != 0
			ac.AircraftType = ogn.AircraftType((flags & aircraftTypeMask) >> 2)
			ac.AddressType = ogn.AddressType(flags & addressTypeMask)
			ac.Address = strings.ToUpper(m.Captures["address"])
		},
	},
	{
		// +020fpm
		Name:    "climb_rate",
		Pattern: `^(?P<fpm>{SINT})fpm$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			b.Aircraft().ClimbRate = patterns.FpmToMs(atof(m.Captures["fpm"]))
		},
	},
	{
		// -0.9rot
		Name:    "turn_rate",
		Pattern: `^(?P<rot>{SDEC})rot$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			b.Aircraft().TurnRate = atof(m.Captures["rot"])
		},
	},
	{
		// 16.8dB
		Name:    "signal_strength",
		Pattern: `^(?P<db>[+-]?{DEC})dB$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			b.Aircraft().SignalStrength = atof(m.Captures["db"])
		},
	},
	{
		// 9e
		Name:    "error_count",
		Pattern: `^(?P<errors>{INT})e$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			b.Aircraft().ErrorCount = atoi(m.Captures["errors"])
		},
	},
	{
		// -5.2kHz
		Name:    "frequency_offset",
		Pattern: `^(?P<khz>{SDEC})kHz$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			b.Aircraft().FrequencyOffset = atof(m.Captures["khz"])
		},
	},
	{
		// hearB597
		Name:    "heard",
		Pattern: `^hear(?P<id>{HEX4})$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			ac := b.Aircraft()
			ac.HeardAircraftIDs = append(ac.HeardAircraftIDs, m.Captures["id"])
		},
	},
	{
		// gps2x3
		Name:    "gps_accuracy",
		Pattern: `^gps(?P<accuracy>{INT}x{INT})$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			b.Aircraft().GPSAccuracy = m.Text
		},
	},
	{
		// !W29! adds a third decimal to the latitude and longitude minutes.
		Name:    "precision",
		Pattern: `^!W(?P<lat>\d)(?P<lon>\d)!$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			b.RefinePosition(
				atof(m.Captures["lat"])/1000/60,
				atof(m.Captures["lon"])/1000/60,
			)
		},
	},
	{
		// FL012.34
		Name:    "flight_level",
		Pattern: `^FL(?P<fl>{DEC})$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			b.Aircraft().FlightLevel = atof(m.Captures["fl"])
		},
	},
	{
		// s6.01
		Name:    "firmware_version",
		Pattern: `^s(?P<fw>{DEC})$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			b.Aircraft().FirmwareVersion = m.Captures["fw"]
		},
	},
	{
		// h03
		Name:    "hardware_version",
		Pattern: `^h(?P<hw>{HEX2})$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			b.Aircraft().HardwareVersion = strings.ToUpper(m.Captures["hw"])
		},
	},

	// Receiver tokens.
	{
		// v0.2.5.ARM
		Name:    "version",
		Pattern: `^v(?P<version>{VERSION})(?:\.(?P<platform>{PLATFORM}))?$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			rx := b.Receiver()
			rx.Version = m.Captures["version"]
			rx.Platform = m.Captures["platform"]
		},
	},
	{
		// CPU:0.3
		Name:    "cpu_load",
		Pattern: `^CPU:(?P<cpu>{DEC})$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			b.Receiver().CPULoad = atof(m.Captures["cpu"])
		},
	},
	{
		// RAM:695.0/970.5MB
		Name:    "ram",
		Pattern: `^RAM:(?P<free>{DEC})/(?P<total>{DEC})MB$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			rx := b.Receiver()
			rx.FreeRAM = atof(m.Captures["free"])
			rx.TotalRAM = atof(m.Captures["total"])
		},
	},
	{
		// NTP:1.7ms/-70.8ppm
		Name:    "ntp",
		Pattern: `^NTP:(?P<offset>[+-]?{DEC})ms/(?P<correction>[+-]?{DEC})ppm$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			rx := b.Receiver()
			rx.NTPOffset = atof(m.Captures["offset"])
			rx.NTPCorrection = atof(m.Captures["correction"])
		},
	},
	{
		// 4.852V
		Name:    "voltage",
		Pattern: `^(?P<volts>{DEC})V$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			b.Receiver().Voltage = atof(m.Captures["volts"])
		},
	},
	{
		// 0.536A
		Name:    "amperage",
		Pattern: `^(?P<amps>{DEC})A$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			b.Receiver().Amperage = atof(m.Captures["amps"])
		},
	},
	{
		// +51.5C
		Name:    "cpu_temp",
		Pattern: `^(?P<temp>{SDEC})C$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			b.Receiver().CPUTemp = atof(m.Captures["temp"])
		},
	},
	{
		// RF:+50+10.6ppm/+0.70dB/+8.5dB@10km[143539]/+7.9dB@10km[12/23]
		// Only the correction and the first noise figure are decoded.
		Name:    "rf",
		Pattern: `^RF:(?P<correction>{SINT})(?P<fine>{SDEC})ppm(?:/(?P<noise>{SDEC})dB)?`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			rx := b.Receiver()
			rx.RecCrystalCorrection = atoi(m.Captures["correction"])
			rx.RecCrystalCorrectionFine = atof(m.Captures["fine"])
			rx.RecInputNoise = atof(m.Captures["noise"])
		},
	},
	{
		// 2/2Acfts[1h]
		Name:    "aircraft_counts",
		Pattern: `^(?P<received>{INT})/(?P<visible>{INT})Acfts\[1h\]$`,
		Apply: func(m *patterns.Match, b *ogn.Builder) {
			rx := b.Receiver()
			rx.AircraftsReceived = atoi(m.Captures["received"])
			rx.AircraftsVisible = atoi(m.Captures["visible"])
		},
	},
}

// Formats returns the table as pattern formats for the compiler.
func Formats() []patterns.Format {
	formats := make([]patterns.Format, len(Table))
	for i, mt := range Table {
		formats[i] = patterns.Format{Name: mt.Name, Pattern: mt.Pattern}
	}
	return formats
}

// atof and atoi return 0 for empty or unparseable captures; the patterns
// already guarantee the digits.
func atof(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimPrefix(s, "+"), 64)
	return v
}

func atoi(s string) int {
	v, _ := strconv.Atoi(strings.TrimPrefix(s, "+"))
	return v
}
