package ogn

import "fmt"

// AddressType identifies the address space of an aircraft transponder id.
type AddressType int

const (
	AddressUnrecognized AddressType = iota
	AddressICAO
	AddressFLARM
	AddressOGN
)

var addressTypeNames = []string{"UNRECOGNIZED", "ICAO", "FLARM", "OGN"}

func (a AddressType) String() string {
	if a < 0 || int(a) >= len(addressTypeNames) {
		return addressTypeNames[0]
	}
	return addressTypeNames[a]
}

func (a AddressType) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AddressType) UnmarshalText(text []byte) error {
	for i, name := range addressTypeNames {
		if name == string(text) {
			*a = AddressType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown address type %q", text)
}

// AircraftType is the OGN aircraft category carried in the id token flags.
// Values match the 4-bit wire encoding.
type AircraftType int

const (
	AircraftUnknown AircraftType = iota
	AircraftGlider
	AircraftTowPlane
	AircraftHelicopterRotorcraft
	AircraftParachute
	AircraftDropPlane
	AircraftHangGlider
	AircraftParaGlider
	AircraftPoweredAircraft
	AircraftJetAircraft
	AircraftUFO
	AircraftBalloon
	AircraftAirship
	AircraftUAV
	aircraftReserved
	AircraftStaticObject
)

var aircraftTypeNames = []string{
	"UNKNOWN",
	"GLIDER",
	"TOW_PLANE",
	"HELICOPTER_ROTORCRAFT",
	"PARACHUTE",
	"DROP_PLANE",
	"HANG_GLIDER",
	"PARA_GLIDER",
	"POWERED_AIRCRAFT",
	"JET_AIRCRAFT",
	"UFO",
	"BALLOON",
	"AIRSHIP",
	"UAV",
	"UNKNOWN",
	"STATIC_OBJECT",
}

func (t AircraftType) String() string {
	if t < 0 || int(t) >= len(aircraftTypeNames) {
		return aircraftTypeNames[0]
	}
	return aircraftTypeNames[t]
}

func (t AircraftType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *AircraftType) UnmarshalText(text []byte) error {
	for i, name := range aircraftTypeNames {
		if name == string(text) && AircraftType(i) != aircraftReserved {
			*t = AircraftType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown aircraft type %q", text)
}

// ReceiverBeaconType distinguishes receiver position and status reports.
type ReceiverBeaconType int

const (
	ReceiverPosition ReceiverBeaconType = iota
	ReceiverStatus
)

func (r ReceiverBeaconType) String() string {
	if r == ReceiverStatus {
		return "RECEIVER_STATUS"
	}
	return "RECEIVER_POSITION"
}

func (r ReceiverBeaconType) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *ReceiverBeaconType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "RECEIVER_POSITION":
		*r = ReceiverPosition
	case "RECEIVER_STATUS":
		*r = ReceiverStatus
	default:
		return fmt.Errorf("unknown receiver beacon type %q", text)
	}
	return nil
}
