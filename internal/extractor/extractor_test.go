package extractor

import (
	"testing"
	"time"

	"ogn_parser/internal/ogn"
)

func TestSplitSourceID(t *testing.T) {
	tests := []struct {
		input       string
		wantNetwork string
		wantAddress string
		wantOK      bool
	}{
		{"FLRDDA5BA", "FLR", "DDA5BA", true},
		{"ICA3D1C35", "ICA", "3D1C35", true},
		{"OGN123456", "OGN", "123456", true},
		{"flrdda5ba", "FLR", "DDA5BA", true},
		{"Albertv", "", "", false},
		{"FLRDDA5B", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			network, address, ok := SplitSourceID(tt.input)
			if network != tt.wantNetwork || address != tt.wantAddress || ok != tt.wantOK {
				t.Errorf("SplitSourceID(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.input, network, address, ok, tt.wantNetwork, tt.wantAddress, tt.wantOK)
			}
		})
	}
}

func TestNormaliseReceiverName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"LFNX", "LFNX"},
		{"TCPIP*", "TCPIP"},
		{" GLIDERN2 ", "GLIDERN2"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormaliseReceiverName(tt.input); got != tt.want {
			t.Errorf("NormaliseReceiverName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestExtractAircraft(t *testing.T) {
	var b ogn.AircraftBeacon
	b.ID = "FLRDDA5BA"
	b.Timestamp = time.Date(2015, 4, 2, 16, 0, 48, 0, time.UTC)
	b.Lat, b.Lon, b.Alt = 44.5046, 5.6316, 1082.7
	b.Address = "DDA5BA"
	b.AddressType = ogn.AddressFLARM
	b.AircraftType = ogn.AircraftGlider
	b.ReceiverName = "LFNX"
	b.Track = 342
	b.GroundSpeed = 90.7
	b.ClimbRate = -0.5
	b.HeardAircraftIDs = []string{"d5ba", "1234"}

	data := Extract(b)
	if data.Receiver != nil {
		t.Fatalf("unexpected receiver update: %+v", data.Receiver)
	}
	a := data.Aircraft
	if a == nil {
		t.Fatal("expected aircraft update, got nil")
	}
	if a.Address != "DDA5BA" || a.Network != "FLR" {
		t.Errorf("address/network = %q/%q, want DDA5BA/FLR", a.Address, a.Network)
	}
	if a.AddressType != "FLARM" || a.AircraftType != "GLIDER" {
		t.Errorf("types = %q/%q, want FLARM/GLIDER", a.AddressType, a.AircraftType)
	}
	if a.Receiver != "LFNX" {
		t.Errorf("receiver = %q, want LFNX", a.Receiver)
	}
	if a.Track != 342 || a.GroundSpeed != 90.7 || a.ClimbRate != -0.5 {
		t.Errorf("motion = %d/%v/%v", a.Track, a.GroundSpeed, a.ClimbRate)
	}
	if !a.SeenAt.Equal(b.Timestamp) {
		t.Errorf("seen_at = %v, want %v", a.SeenAt, b.Timestamp)
	}
	if len(data.Heard) != 2 || data.Heard[0] != "D5BA" || data.Heard[1] != "1234" {
		t.Errorf("heard = %v, want [D5BA 1234]", data.Heard)
	}
}

func TestExtractAircraftAddressFallback(t *testing.T) {
	var b ogn.AircraftBeacon
	b.ID = "ICA3D1C35"

	data := Extract(b)
	if data.Aircraft == nil || data.Aircraft.Address != "3D1C35" {
		t.Fatalf("expected address from source id, got %+v", data.Aircraft)
	}
}

func TestExtractNoTracking(t *testing.T) {
	var b ogn.AircraftBeacon
	b.ID = "FLRDDA5BA"
	b.Address = "DDA5BA"
	b.NoTracking = true
	b.HeardAircraftIDs = []string{"1234"}

	data := Extract(b)
	if data.Aircraft != nil || data.Heard != nil {
		t.Errorf("expected nothing for a no-tracking aircraft, got %+v", data)
	}
}

func TestExtractReceiverPosition(t *testing.T) {
	var b ogn.ReceiverBeacon
	b.ID = "LZHL"
	b.ReceiverBeaconType = ogn.ReceiverPosition
	b.ServerName = "GLIDERN3"
	b.Lat, b.Lon, b.Alt = 48.5, 17.1, 200

	data := Extract(b)
	r := data.Receiver
	if r == nil || r.Position == nil {
		t.Fatalf("expected receiver position, got %+v", r)
	}
	if r.Health != nil {
		t.Errorf("position beacon must not carry health")
	}
	if r.Name != "LZHL" || r.ServerName != "GLIDERN3" {
		t.Errorf("name/server = %q/%q", r.Name, r.ServerName)
	}
	if r.Position.Latitude != 48.5 || r.Position.Altitude != 200 {
		t.Errorf("position = %+v", r.Position)
	}
}

func TestExtractReceiverStatus(t *testing.T) {
	var b ogn.ReceiverBeacon
	b.ID = "Albertv"
	b.ReceiverBeaconType = ogn.ReceiverStatus
	b.ServerName = "GLIDERN2"
	b.Version = "0.2.2"
	b.Platform = "ARM"
	b.CPULoad = 0.68
	b.RecCrystalCorrection = 5
	b.RecInputNoise = 1.2
	b.AircraftsVisible = 3

	data := Extract(b)
	r := data.Receiver
	if r == nil || r.Health == nil {
		t.Fatalf("expected receiver health, got %+v", r)
	}
	if r.Position != nil {
		t.Errorf("status beacon must not carry a position")
	}
	h := r.Health
	if h.Version != "0.2.2" || h.Platform != "ARM" || h.CPULoad != 0.68 || h.RecCrystalCorrection != 5 || h.AircraftsVisible != 3 {
		t.Errorf("health = %+v", h)
	}
}
