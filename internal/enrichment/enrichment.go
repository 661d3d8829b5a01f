// Package enrichment joins aircraft beacons with device database descriptors.
// The result is the latest-sighting record served by the API and stored in PostgreSQL.
package enrichment

import (
	"ogn_parser/internal/ddb"
	"ogn_parser/internal/extractor"
	"ogn_parser/internal/igc"
	"ogn_parser/internal/ogn"
	"ogn_parser/internal/storage"
)

// DescriptorLookup resolves device addresses. *ddb.Provider implements it.
type DescriptorLookup interface {
	FindDescriptor(address string) (ddb.Descriptor, bool)
}

// ExtractEnrichment builds the sighting record for an aircraft beacon.
// Returns nil when the beacon has no address or the aircraft must not be
// tracked, either by its own no-tracking flag or by its database entry.
//
// Registration details are withheld for stealth aircraft and for entries the
// owner has not marked as identifiable.
func ExtractEnrichment(b ogn.AircraftBeacon, lookup DescriptorLookup) *storage.AircraftSighting {
	update := extractor.Extract(b).Aircraft
	if update == nil || update.Address == "" {
		return nil
	}

	var desc ddb.Descriptor
	var found bool
	if lookup != nil {
		desc, found = lookup.FindDescriptor(update.Address)
	}
	if found && !desc.Tracked {
		return nil
	}
	if b.Stealth || (found && !desc.Identified) {
		desc = ddb.Descriptor{}
	}

	return &storage.AircraftSighting{
		Address:      update.Address,
		SourceID:     update.SourceID,
		AddressType:  update.AddressType,
		AircraftType: update.AircraftType,
		Registration: desc.Registration,
		CN:           desc.CN,
		Model:        desc.Model,
		LogFileID:    igc.LogFileID(b, desc),
		Receiver:     update.Receiver,
		Latitude:     update.Latitude,
		Longitude:    update.Longitude,
		Altitude:     update.Altitude,
		Track:        update.Track,
		GroundSpeed:  update.GroundSpeed,
		ClimbRate:    update.ClimbRate,
		SeenAt:       update.SeenAt,
	}
}
