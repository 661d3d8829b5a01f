package state

import "time"

// Aircraft is the in-memory state of an aircraft seen on the feed.
type Aircraft struct {
	Address      string    `json:"address"`
	SourceID     string    `json:"source_id"`
	AddressType  string    `json:"address_type"`
	AircraftType string    `json:"aircraft_type"`
	Receiver     string    `json:"receiver"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Altitude     float64   `json:"altitude"`
	Track        int       `json:"track"`
	GroundSpeed  float64   `json:"ground_speed"`
	ClimbRate    float64   `json:"climb_rate"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	MsgCount     int       `json:"msg_count"`
}

// Receiver is the in-memory state of a ground station.
type Receiver struct {
	Name        string    `json:"name"`
	ServerName  string    `json:"server_name,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Altitude    float64   `json:"altitude"`
	HasPosition bool      `json:"has_position"`
	Version     string    `json:"version,omitempty"`
	Platform    string    `json:"platform,omitempty"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	MsgCount    int       `json:"msg_count"`
	Relayed     int       `json:"relayed_aircraft"` // Distinct aircraft addresses gated.
}
