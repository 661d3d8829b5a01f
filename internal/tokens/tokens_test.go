package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"ogn_parser/internal/ogn"
)

var ts = time.Date(2024, 3, 10, 16, 52, 2, 0, time.UTC)

func buildAircraft(t *testing.T, tail string) (ogn.AircraftBeacon, int) {
	t.Helper()
	b := ogn.NewBuilder(ogn.TypeAircraft, "TEST")
	b.SetTimestamp(ts)
	b.SetPosition(-44.4875, 169.988833)
	dropped := Apply(tail, b)
	beacon, err := b.Build()
	require.NoError(t, err)
	return beacon.(ogn.AircraftBeacon), dropped
}

func buildReceiver(t *testing.T, tail string) (ogn.ReceiverBeacon, int) {
	t.Helper()
	b := ogn.NewBuilder(ogn.TypeReceiverStatus, "TEST")
	b.SetTimestamp(ts)
	dropped := Apply(tail, b)
	beacon, err := b.Build()
	require.NoError(t, err)
	return beacon.(ogn.ReceiverBeacon), dropped
}

func TestApply_Aircraft(t *testing.T) {
	ac, dropped := buildAircraft(t, "id05C821EA +020fpm +0.0rot 16.8dB 0e -3.1kHz gps1x3 hear1084 hearB597 hearB598")

	assert.Zero(t, dropped)
	assert.Equal(t, ogn.AddressICAO, ac.AddressType)
	assert.Equal(t, ogn.AircraftGlider, ac.AircraftType)
	assert.False(t, ac.Stealth)
	assert.False(t, ac.NoTracking)
	assert.Equal(t, "C821EA", ac.Address)
	assert.InDelta(t, 0.1016, ac.ClimbRate, 1e-6)
	assert.Equal(t, 0.0, ac.TurnRate)
	assert.Equal(t, 16.8, ac.SignalStrength)
	assert.Equal(t, 0, ac.ErrorCount)
	assert.Equal(t, -3.1, ac.FrequencyOffset)
	assert.Equal(t, "gps1x3", ac.GPSAccuracy)
	assert.Equal(t, []string{"1084", "B597", "B598"}, ac.HeardAircraftIDs)
}

func TestApply_AddressFlags(t *testing.T) {
	tests := []struct {
		token        string
		addressType  ogn.AddressType
		aircraftType ogn.AircraftType
		stealth      bool
		noTracking   bool
		address      string
	}{
		{"id05C821EA", ogn.AddressICAO, ogn.AircraftGlider, false, false, "C821EA"},
		{"id0B202E5D", ogn.AddressOGN, ogn.AircraftTowPlane, false, false, "202E5D"},
		{"id06DD4E02", ogn.AddressFLARM, ogn.AircraftGlider, false, false, "DD4E02"},
		{"id1FFF00BD", ogn.AddressOGN, ogn.AircraftParaGlider, false, false, "FF00BD"},
		{"id3E123456", ogn.AddressFLARM, ogn.AircraftStaticObject, false, false, "123456"},
		{"id8508a1b2", ogn.AddressICAO, ogn.AircraftGlider, true, false, "08A1B2"},
		{"id60ABCDEF", ogn.AddressUnrecognized, ogn.AircraftPoweredAircraft, false, true, "ABCDEF"},
		{"idC1000001", ogn.AddressICAO, ogn.AircraftUnknown, true, true, "000001"},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			ac, _ := buildAircraft(t, tt.token)
			assert.Equal(t, tt.addressType, ac.AddressType)
			assert.Equal(t, tt.aircraftType, ac.AircraftType)
			assert.Equal(t, tt.stealth, ac.Stealth)
			assert.Equal(t, tt.noTracking, ac.NoTracking)
			assert.Equal(t, tt.address, ac.Address)
		})
	}
}

func TestApply_SupplementaryAircraftTokens(t *testing.T) {
	ac, dropped := buildAircraft(t, "-01fpm FL012.34 s6.01 h03 -1.5dB 12e")

	assert.Zero(t, dropped)
	assert.InDelta(t, -0.00508, ac.ClimbRate, 1e-9)
	assert.Equal(t, 12.34, ac.FlightLevel)
	assert.Equal(t, "6.01", ac.FirmwareVersion)
	assert.Equal(t, "03", ac.HardwareVersion)
	assert.Equal(t, -1.5, ac.SignalStrength)
	assert.Equal(t, 12, ac.ErrorCount)
}

func TestApply_PrecisionEnhancement(t *testing.T) {
	ac, _ := buildAircraft(t, "!W29!")

	// Southern latitude grows more negative, eastern longitude more positive.
	assert.InDelta(t, -44.4875-0.002/60, ac.Lat, 1e-9)
	assert.InDelta(t, 169.988833+0.009/60, ac.Lon, 1e-9)
}

func TestApply_Receiver(t *testing.T) {
	rx, dropped := buildReceiver(t, "v0.2.6.ARM CPU:0.8 RAM:856.8/1017.6MB NTP:1.7ms/-70.8ppm 4.852V 0.536A +55.4C 2/3Acfts[1h] RF:+50+10.6ppm/+0.70dB/+8.5dB@10km[143539]/+7.9dB@10km[12/23]")

	assert.Zero(t, dropped)
	assert.Equal(t, "0.2.6", rx.Version)
	assert.Equal(t, "ARM", rx.Platform)
	assert.Equal(t, 0.8, rx.CPULoad)
	assert.Equal(t, 856.8, rx.FreeRAM)
	assert.Equal(t, 1017.6, rx.TotalRAM)
	assert.Equal(t, 1.7, rx.NTPOffset)
	assert.Equal(t, -70.8, rx.NTPCorrection)
	assert.Equal(t, 4.852, rx.Voltage)
	assert.Equal(t, 0.536, rx.Amperage)
	assert.Equal(t, 55.4, rx.CPUTemp)
	assert.Equal(t, 2, rx.AircraftsReceived)
	assert.Equal(t, 3, rx.AircraftsVisible)
	assert.Equal(t, 50, rx.RecCrystalCorrection)
	assert.Equal(t, 10.6, rx.RecCrystalCorrectionFine)
	assert.Equal(t, 0.70, rx.RecInputNoise)
}

func TestApply_ReceiverVariants(t *testing.T) {
	t.Run("negative fine correction", func(t *testing.T) {
		rx, _ := buildReceiver(t, "RF:+0-0.0ppm/+1.32dB")
		assert.Equal(t, 0, rx.RecCrystalCorrection)
		assert.Equal(t, 0.0, rx.RecCrystalCorrectionFine)
		assert.Equal(t, 1.32, rx.RecInputNoise)
	})

	t.Run("rf without noise", func(t *testing.T) {
		rx, _ := buildReceiver(t, "RF:-3+2.5ppm")
		assert.Equal(t, -3, rx.RecCrystalCorrection)
		assert.Equal(t, 2.5, rx.RecCrystalCorrectionFine)
		assert.Zero(t, rx.RecInputNoise)
	})

	t.Run("platform with dash", func(t *testing.T) {
		rx, _ := buildReceiver(t, "v0.2.7.RPI-GPU")
		assert.Equal(t, "0.2.7", rx.Version)
		assert.Equal(t, "RPI-GPU", rx.Platform)
	})

	t.Run("version without platform", func(t *testing.T) {
		rx, _ := buildReceiver(t, "v0.2.7")
		assert.Equal(t, "0.2.7", rx.Version)
		assert.Empty(t, rx.Platform)
	})
}

func TestApply_UnknownTokensDropped(t *testing.T) {
	ac, dropped := buildAircraft(t, "id05C821EA foo +020fpm 3.4xyz hear1084 rot")
	assert.Equal(t, 3, dropped)
	assert.Equal(t, "C821EA", ac.Address)
	assert.InDelta(t, 0.1016, ac.ClimbRate, 1e-6)
	assert.Equal(t, []string{"1084"}, ac.HeardAircraftIDs)
}

func TestApply_EmptyTail(t *testing.T) {
	ac, dropped := buildAircraft(t, "   ")
	assert.Zero(t, dropped)
	assert.Equal(t, ogn.AddressUnrecognized, ac.AddressType)
	assert.Nil(t, ac.HeardAircraftIDs)
}

// Heard ids keep the order and multiplicity of the tail.
func TestApply_HeardOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOf(rapid.StringMatching(`[0-9A-F]{4}`)).Draw(t, "ids")

		tail := "id05C821EA"
		for _, id := range ids {
			tail += " hear" + id
		}

		b := ogn.NewBuilder(ogn.TypeAircraft, "TEST")
		b.SetTimestamp(ts)
		b.SetPosition(1, 1)
		Apply(tail, b)
		beacon, err := b.Build()
		if err != nil {
			t.Fatal(err)
		}
		got := beacon.(ogn.AircraftBeacon).HeardAircraftIDs
		if len(got) != len(ids) {
			t.Fatalf("got %d heard ids, want %d", len(got), len(ids))
		}
		for i := range ids {
			if got[i] != ids[i] {
				t.Fatalf("heard[%d] = %q, want %q", i, got[i], ids[i])
			}
		}
	})
}

func TestTrace(t *testing.T) {
	trace := Trace("id05C821EA bogus 16.8dB")
	require.Len(t, trace, 3)

	assert.Equal(t, "address", trace[0].Matcher)
	assert.Equal(t, "05", trace[0].Captures["flags"])
	assert.Len(t, trace[0].Attempts, 1)

	assert.Empty(t, trace[1].Matcher)
	assert.Len(t, trace[1].Attempts, len(Table))

	assert.Equal(t, "signal_strength", trace[2].Matcher)
	assert.True(t, trace[2].Attempts[len(trace[2].Attempts)-1].Matched)
}

func TestTableNamesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, m := range Table {
		assert.False(t, seen[m.Name], "duplicate matcher %s", m.Name)
		seen[m.Name] = true
		assert.NotNil(t, m.Apply, m.Name)
	}
}
