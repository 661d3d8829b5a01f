// Package ogn defines the beacon records decoded from Open Glider Network APRS lines.
package ogn

import "time"

// Beacon type names returned by Beacon.Type.
const (
	TypeAircraft         = "aircraft"
	TypeReceiverPosition = "receiver_position"
	TypeReceiverStatus   = "receiver_status"
)

// Beacon is the common interface for all decoded beacons.
type Beacon interface {
	Type() string // e.g., "aircraft", "receiver_status"
	Base() Fix    // Fields shared by every beacon
}

// Fix holds the fields every beacon carries.
type Fix struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Alt       float64   `json:"alt"` // Metres above sea level.
}

// Base returns the shared fields.
func (f Fix) Base() Fix { return f }

// AircraftBeacon is a position report relayed for an aircraft transponder.
type AircraftBeacon struct {
	Fix

	ReceiverName string       `json:"receiver_name"`
	AddressType  AddressType  `json:"address_type"`
	AircraftType AircraftType `json:"aircraft_type"`
	Stealth      bool         `json:"stealth"`
	NoTracking   bool         `json:"no_tracking"`
	Address      string       `json:"address"`

	Track           int     `json:"track,omitempty"` // Degrees.
	GroundSpeed     float64 `json:"ground_speed"`    // km/h.
	ClimbRate       float64 `json:"climb_rate"`      // m/s.
	TurnRate        float64 `json:"turn_rate"`       // Raw rot value.
	SignalStrength  float64 `json:"signal_strength"` // dB.
	ErrorCount      int     `json:"error_count"`
	FrequencyOffset float64 `json:"frequency_offset"` // kHz.
	FlightLevel     float64 `json:"flight_level,omitempty"`

	HeardAircraftIDs []string `json:"heard_aircraft_ids,omitempty"`
	GPSAccuracy      string   `json:"gps_accuracy,omitempty"`
	FirmwareVersion  string   `json:"firmware_version,omitempty"`
	HardwareVersion  string   `json:"hardware_version,omitempty"`
}

func (b AircraftBeacon) Type() string { return TypeAircraft }

// ReceiverBeacon is a position or status report from a ground receiver.
type ReceiverBeacon struct {
	Fix

	ReceiverBeaconType ReceiverBeaconType `json:"receiver_beacon_type"`
	ServerName         string             `json:"server_name"`

	Version  string  `json:"version,omitempty"`
	Platform string  `json:"platform,omitempty"`
	CPULoad  float64 `json:"cpu_load"`
	FreeRAM  float64 `json:"free_ram"`  // MB.
	TotalRAM float64 `json:"total_ram"` // MB.
	CPUTemp  float64 `json:"cpu_temp"`  // Celsius.

	RecCrystalCorrection     int     `json:"rec_crystal_correction"`      // ppm.
	RecCrystalCorrectionFine float64 `json:"rec_crystal_correction_fine"` // ppm.
	RecInputNoise            float64 `json:"rec_input_noise"`             // dB.

	NTPOffset         float64 `json:"ntp_offset,omitempty"`     // ms.
	NTPCorrection     float64 `json:"ntp_correction,omitempty"` // ppm.
	Voltage           float64 `json:"voltage,omitempty"`
	Amperage          float64 `json:"amperage,omitempty"`
	AircraftsReceived int     `json:"aircrafts_received,omitempty"` // Last hour.
	AircraftsVisible  int     `json:"aircrafts_visible,omitempty"`  // Last hour.
}

func (b ReceiverBeacon) Type() string {
	if b.ReceiverBeaconType == ReceiverStatus {
		return TypeReceiverStatus
	}
	return TypeReceiverPosition
}
