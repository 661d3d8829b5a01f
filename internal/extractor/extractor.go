// Package extractor provides functions for extracting tracking state from decoded OGN beacons.
// This package is database-agnostic and can be used with any storage backend.
package extractor

import (
	"regexp"
	"strings"
	"time"

	"ogn_parser/internal/ogn"
)

// sourceIDRe captures the network prefix and device address of an aircraft source id.
var sourceIDRe = regexp.MustCompile(`^([A-Z]{3})([0-9A-F]{6})$`)

// AircraftUpdate contains aircraft state extracted from a beacon.
type AircraftUpdate struct {
	Address      string    `json:"address"`
	SourceID     string    `json:"source_id"`
	Network      string    `json:"network,omitempty"` // FLR, ICA, OGN, ...
	AddressType  string    `json:"address_type"`
	AircraftType string    `json:"aircraft_type"`
	Stealth      bool      `json:"stealth,omitempty"`
	Receiver     string    `json:"receiver,omitempty"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Altitude     float64   `json:"altitude"`
	Track        int       `json:"track,omitempty"`
	GroundSpeed  float64   `json:"ground_speed,omitempty"`
	ClimbRate    float64   `json:"climb_rate,omitempty"`
	SeenAt       time.Time `json:"seen_at"`
}

// ReceiverPosition is the location reported by a receiver position beacon.
type ReceiverPosition struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// ReceiverHealth is the station health reported by a receiver status beacon.
type ReceiverHealth struct {
	Version                  string  `json:"version,omitempty"`
	Platform                 string  `json:"platform,omitempty"`
	CPULoad                  float64 `json:"cpu_load"`
	FreeRAM                  float64 `json:"free_ram"`
	TotalRAM                 float64 `json:"total_ram"`
	CPUTemp                  float64 `json:"cpu_temp"`
	RecCrystalCorrection     int     `json:"rec_crystal_correction"`
	RecCrystalCorrectionFine float64 `json:"rec_crystal_correction_fine"`
	RecInputNoise            float64 `json:"rec_input_noise"`
	AircraftsReceived        int     `json:"aircrafts_received"`
	AircraftsVisible         int     `json:"aircrafts_visible"`
}

// ReceiverUpdate contains receiver state extracted from a beacon. Exactly one
// of Position and Health is set.
type ReceiverUpdate struct {
	Name       string            `json:"name"`
	ServerName string            `json:"server_name,omitempty"`
	SeenAt     time.Time         `json:"seen_at"`
	Position   *ReceiverPosition `json:"position,omitempty"`
	Health     *ReceiverHealth   `json:"health,omitempty"`
}

// ExtractedData is a container for all data extracted from a beacon.
type ExtractedData struct {
	Aircraft *AircraftUpdate `json:"aircraft,omitempty"`
	Receiver *ReceiverUpdate `json:"receiver,omitempty"`
	Heard    []string        `json:"heard,omitempty"` // Addresses relayed by the aircraft.
}

// Extract extracts tracking state from a decoded beacon. Aircraft that ask
// not to be tracked yield no aircraft update.
func Extract(b ogn.Beacon) ExtractedData {
	var data ExtractedData

	switch v := b.(type) {
	case ogn.AircraftBeacon:
		if v.NoTracking {
			return data
		}
		data.Aircraft = extractAircraft(v)
		if len(v.HeardAircraftIDs) > 0 {
			data.Heard = make([]string, len(v.HeardAircraftIDs))
			for i, id := range v.HeardAircraftIDs {
				data.Heard[i] = strings.ToUpper(id)
			}
		}

	case ogn.ReceiverBeacon:
		data.Receiver = extractReceiver(v)
	}

	return data
}

func extractAircraft(b ogn.AircraftBeacon) *AircraftUpdate {
	update := &AircraftUpdate{
		Address:      b.Address,
		SourceID:     b.ID,
		AddressType:  b.AddressType.String(),
		AircraftType: b.AircraftType.String(),
		Stealth:      b.Stealth,
		Receiver:     NormaliseReceiverName(b.ReceiverName),
		Latitude:     b.Lat,
		Longitude:    b.Lon,
		Altitude:     b.Alt,
		Track:        b.Track,
		GroundSpeed:  b.GroundSpeed,
		ClimbRate:    b.ClimbRate,
		SeenAt:       b.Timestamp,
	}

	if network, address, ok := SplitSourceID(b.ID); ok {
		update.Network = network
		// Fall back to the address embedded in the source id.
		if update.Address == "" {
			update.Address = address
		}
	}

	return update
}

func extractReceiver(b ogn.ReceiverBeacon) *ReceiverUpdate {
	update := &ReceiverUpdate{
		Name:       b.ID,
		ServerName: NormaliseReceiverName(b.ServerName),
		SeenAt:     b.Timestamp,
	}

	if b.ReceiverBeaconType == ogn.ReceiverPosition {
		update.Position = &ReceiverPosition{Latitude: b.Lat, Longitude: b.Lon, Altitude: b.Alt}
		return update
	}

	update.Health = &ReceiverHealth{
		Version:                  b.Version,
		Platform:                 b.Platform,
		CPULoad:                  b.CPULoad,
		FreeRAM:                  b.FreeRAM,
		TotalRAM:                 b.TotalRAM,
		CPUTemp:                  b.CPUTemp,
		RecCrystalCorrection:     b.RecCrystalCorrection,
		RecCrystalCorrectionFine: b.RecCrystalCorrectionFine,
		RecInputNoise:            b.RecInputNoise,
		AircraftsReceived:        b.AircraftsReceived,
		AircraftsVisible:         b.AircraftsVisible,
	}
	return update
}

// SplitSourceID splits an aircraft source id such as "FLRDDA5BA" into its
// network prefix and device address.
func SplitSourceID(id string) (network, address string, ok bool) {
	match := sourceIDRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(id)))
	if match == nil {
		return "", "", false
	}
	return match[1], match[2], true
}

// NormaliseReceiverName strips the digipeated marker and surrounding spaces
// from a routing path element.
func NormaliseReceiverName(name string) string {
	return strings.TrimSuffix(strings.TrimSpace(name), "*")
}
