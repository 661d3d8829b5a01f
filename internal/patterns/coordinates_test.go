package patterns

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDMSToDeg(t *testing.T) {
	assert.InDelta(t, 44.4875, DMSToDeg(4429.25), 1e-9)
	assert.InDelta(t, 169.988833, DMSToDeg(16959.33), 1e-6)
	assert.InDelta(t, 0.5, DMSToDeg(30.0), 1e-9)
	assert.InDelta(t, 4429.25, DegToDMS(44.4875), 1e-9)
}

func TestParseDMSCoord(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		degDigits int
		dir       byte
		want      float64
	}{
		{"latitude north", "4749.47", 2, 'N', 47.824500},
		{"latitude south", "3322.81", 2, 'S', -33.380167},
		{"longitude east", "16959.33", 3, 'E', 169.988833},
		{"longitude west", "07034.95", 3, 'W', -70.582500},
		{"extra precision digit", "4749.472", 2, 'N', 47.824533},
		{"equator", "0000.00", 2, 'N', 0},
		{"pole", "9000.00", 2, 'S', -90},
		{"antimeridian", "18000.00", 3, 'W', -180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDMSCoord(tt.input, tt.degDigits, tt.dir)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestParseDMSCoord_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		degDigits int
		dir       byte
	}{
		{"hemisphere for wrong axis", "4749.47", 2, 'E'},
		{"unknown hemisphere", "4749.47", 2, 'X'},
		{"letters", "47A9.47", 2, 'N'},
		{"missing fraction", "4749.", 2, 'N'},
		{"no point", "474947", 2, 'N'},
		{"short whole part", "749.47", 2, 'N'},
		{"minutes 60", "4760.00", 2, 'N'},
		{"latitude over 90", "9000.01", 2, 'N'},
		{"longitude over 180", "18000.01", 3, 'E'},
		{"spaces", "47 9.47", 2, 'N'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDMSCoord(tt.input, tt.degDigits, tt.dir)
			assert.ErrorIs(t, err, ErrBadCoordinate)
		})
	}
}

func TestFormatCoordinates(t *testing.T) {
	lat, dir := FormatLatitude(-44.4875)
	assert.Equal(t, "4429.25", lat)
	assert.Equal(t, byte('S'), dir)

	lon, dir := FormatLongitude(7.5)
	assert.Equal(t, "00730.00", lon)
	assert.Equal(t, byte('E'), dir)

	// 59.999 minutes rounds up into the next degree rather than to 60.00.
	lat, _ = FormatLatitude(10 + 59.999/60)
	assert.Equal(t, "1100.00", lat)
}

// Any position survives a format/parse round trip to within 0.01 degrees.
func TestDMSRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lat := rapid.Float64Range(-90, 90).Draw(t, "lat")
		lon := rapid.Float64Range(-180, 180).Draw(t, "lon")

		latText, latDir := FormatLatitude(lat)
		lonText, lonDir := FormatLongitude(lon)

		gotLat, err := ParseLatitude(latText, latDir)
		if err != nil {
			t.Fatalf("parse %s%c: %v", latText, latDir, err)
		}
		gotLon, err := ParseLongitude(lonText, lonDir)
		if err != nil {
			t.Fatalf("parse %s%c: %v", lonText, lonDir, err)
		}

		if math.Abs(gotLat-lat) > 0.01 {
			t.Fatalf("latitude %f round-tripped to %f via %s", lat, gotLat, latText)
		}
		if math.Abs(gotLon-lon) > 0.01 {
			t.Fatalf("longitude %f round-tripped to %f via %s", lon, gotLon, lonText)
		}
	})
}
