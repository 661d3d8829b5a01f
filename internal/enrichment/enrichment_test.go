package enrichment

import (
	"context"
	"testing"
	"time"

	"ogn_parser/internal/ddb"
	"ogn_parser/internal/logging"
	"ogn_parser/internal/ogn"
)

func testBeacon() ogn.AircraftBeacon {
	var b ogn.AircraftBeacon
	b.ID = "FLRDDA5BA"
	b.Timestamp = time.Date(2015, 4, 2, 16, 0, 48, 0, time.UTC)
	b.Lat, b.Lon, b.Alt = 44.5046, 5.6316, 1082.7
	b.Address = "DDA5BA"
	b.AddressType = ogn.AddressFLARM
	b.AircraftType = ogn.AircraftGlider
	b.ReceiverName = "LFNX"
	return b
}

func testProvider(descs ...ddb.Descriptor) *ddb.Provider {
	store := ddb.NewMemoryStore(descs...)
	return ddb.NewProvider(context.Background(), func(string) (ddb.Store, error) { return store, nil }, "memory", 0, logging.Discard())
}

func TestExtractEnrichmentKnown(t *testing.T) {
	lookup := testProvider(ddb.Descriptor{
		Address: "DDA5BA", Model: "ASK-21", Registration: "D-1234", CN: "AB", Tracked: true, Identified: true,
	})

	s := ExtractEnrichment(testBeacon(), lookup)
	if s == nil {
		t.Fatal("expected sighting, got nil")
	}
	if s.Registration != "D-1234" || s.CN != "AB" || s.Model != "ASK-21" {
		t.Errorf("descriptor fields = %q/%q/%q", s.Registration, s.CN, s.Model)
	}
	if s.LogFileID != "FLRDDA5BA_D-1234_AB" {
		t.Errorf("log_file_id = %q, want FLRDDA5BA_D-1234_AB", s.LogFileID)
	}
	if s.Receiver != "LFNX" || s.AircraftType != "GLIDER" {
		t.Errorf("receiver/type = %q/%q", s.Receiver, s.AircraftType)
	}
	if !s.SeenAt.Equal(testBeacon().Timestamp) {
		t.Errorf("seen_at = %v", s.SeenAt)
	}
}

func TestExtractEnrichmentUnknown(t *testing.T) {
	s := ExtractEnrichment(testBeacon(), testProvider())
	if s == nil {
		t.Fatal("expected sighting, got nil")
	}
	if s.Registration != "" || s.LogFileID != "FLRDDA5BA" {
		t.Errorf("unknown aircraft got registration %q, log id %q", s.Registration, s.LogFileID)
	}

	// A nil lookup behaves like an empty database.
	if s := ExtractEnrichment(testBeacon(), nil); s == nil || s.LogFileID != "FLRDDA5BA" {
		t.Errorf("nil lookup: %+v", s)
	}
}

func TestExtractEnrichmentPrivacy(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*ogn.AircraftBeacon)
		desc     ddb.Descriptor
		wantNil  bool
		wantReg  string
		wantLogs string
	}{
		{
			name:    "no-tracking flag",
			mutate:  func(b *ogn.AircraftBeacon) { b.NoTracking = true },
			desc:    ddb.Descriptor{Address: "DDA5BA", Registration: "D-1234", Tracked: true, Identified: true},
			wantNil: true,
		},
		{
			name:    "database opt-out",
			desc:    ddb.Descriptor{Address: "DDA5BA", Registration: "D-1234", Tracked: false, Identified: true},
			wantNil: true,
		},
		{
			name:     "not identified",
			desc:     ddb.Descriptor{Address: "DDA5BA", Registration: "D-1234", Tracked: true, Identified: false},
			wantLogs: "FLRDDA5BA",
		},
		{
			name:     "stealth",
			mutate:   func(b *ogn.AircraftBeacon) { b.Stealth = true },
			desc:     ddb.Descriptor{Address: "DDA5BA", Registration: "D-1234", Tracked: true, Identified: true},
			wantLogs: "FLRDDA5BA",
		},
		{
			name:     "identified",
			desc:     ddb.Descriptor{Address: "DDA5BA", Registration: "D-1234", Tracked: true, Identified: true},
			wantReg:  "D-1234",
			wantLogs: "FLRDDA5BA_D-1234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBeacon()
			if tt.mutate != nil {
				tt.mutate(&b)
			}
			s := ExtractEnrichment(b, testProvider(tt.desc))
			if tt.wantNil {
				if s != nil {
					t.Errorf("expected nil, got %+v", s)
				}
				return
			}
			if s == nil {
				t.Fatal("expected sighting, got nil")
			}
			if s.Registration != tt.wantReg {
				t.Errorf("registration = %q, want %q", s.Registration, tt.wantReg)
			}
			if s.LogFileID != tt.wantLogs {
				t.Errorf("log_file_id = %q, want %q", s.LogFileID, tt.wantLogs)
			}
		})
	}
}

func TestExtractEnrichmentNoAddress(t *testing.T) {
	var b ogn.AircraftBeacon
	b.ID = "Unknown"
	if s := ExtractEnrichment(b, nil); s != nil {
		t.Errorf("expected nil without an address, got %+v", s)
	}
}
