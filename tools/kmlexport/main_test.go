package main

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKML(t *testing.T) {
	t0 := time.Date(2015, 4, 2, 16, 0, 0, 0, time.UTC)
	tracks := []Track{{
		Address:  "DDA5BA",
		SourceID: "FLRDDA5BA",
		Label:    "D-KEKS KS",
		Points: []TrackPoint{
			{Time: t0.Add(time.Minute), Lat: 44.51, Lon: 5.64, Alt: 1250},
			{Time: t0, Lat: 44.50, Lon: 5.63, Alt: 1200},
		},
	}}

	kml := generateKML(tracks, t0)
	require.Len(t, kml.Document.Placemarks, 2)

	line := kml.Document.Placemarks[0]
	assert.Equal(t, "FLRDDA5BA (D-KEKS KS)", line.Name)
	require.NotNil(t, line.LineString)
	assert.Equal(t, "5.630000,44.500000,1200 5.640000,44.510000,1250", line.LineString.Coordinates, "fixes are ordered by time")
	assert.Nil(t, line.Point)

	last := kml.Document.Placemarks[1]
	require.NotNil(t, last.Point)
	assert.Equal(t, "5.640000,44.510000,1250", last.Point.Coordinates)

	data, err := xml.Marshal(kml)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.HasPrefix(out, `<kml xmlns="http://www.opengis.net/kml/2.2">`))
	assert.Contains(t, out, "<LineStyle><color>ff0000ff</color>")
	assert.Equal(t, 1, strings.Count(out, "<LineString>"))
}

func TestGenerateKMLFallsBackToAddress(t *testing.T) {
	kml := generateKML([]Track{{Address: "C821EA", Points: []TrackPoint{{Lat: -44.49, Lon: 169.99}}}}, time.Now())
	assert.Equal(t, "C821EA", kml.Document.Placemarks[0].Name)
}
