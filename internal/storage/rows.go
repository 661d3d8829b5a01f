package storage

import (
	"time"

	"ogn_parser/internal/ogn"
)

// BeaconRow is the flat, store-independent shape of a decoded beacon.
type BeaconRow struct {
	Timestamp      time.Time
	BeaconType     string
	SourceID       string
	Address        string // Aircraft only.
	AddressType    string
	AircraftType   string
	Receiver       string // Receiving station for aircraft, server for receivers.
	Lat            float64
	Lon            float64
	Alt            float64
	Track          int
	GroundSpeed    float64
	ClimbRate      float64
	SignalStrength float64
}

// NewBeaconRow flattens a beacon.
func NewBeaconRow(b ogn.Beacon) BeaconRow {
	base := b.Base()
	row := BeaconRow{
		Timestamp:  base.Timestamp,
		BeaconType: b.Type(),
		SourceID:   base.ID,
		Lat:        base.Lat,
		Lon:        base.Lon,
		Alt:        base.Alt,
	}

	switch v := b.(type) {
	case ogn.AircraftBeacon:
		row.Address = v.Address
		row.AddressType = v.AddressType.String()
		row.AircraftType = v.AircraftType.String()
		row.Receiver = v.ReceiverName
		row.Track = v.Track
		row.GroundSpeed = v.GroundSpeed
		row.ClimbRate = v.ClimbRate
		row.SignalStrength = v.SignalStrength
	case ogn.ReceiverBeacon:
		row.Receiver = v.ServerName
	}
	return row
}
