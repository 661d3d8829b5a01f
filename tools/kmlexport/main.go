// Package main provides a tool to export aircraft tracks from the beacon
// history to KML format. KML (Keyhole Markup Language) files can be viewed in
// Google Earth, Google Maps, and other mapping applications.
//
// Tracks are read from ClickHouse when CLICKHOUSE_HOST is set, otherwise from
// the SQLite archive.
package main

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"ogn_parser/internal/config"
	"ogn_parser/internal/ddb"
	"ogn_parser/internal/ogn"
	"ogn_parser/internal/storage"
)

// KML structures for XML marshalling.
// These follow the KML 2.2 specification: https://developers.google.com/kml/documentation/kmlreference

// KML is the root element of a KML document.
type KML struct {
	XMLName   xml.Name `xml:"kml"`
	Namespace string   `xml:"xmlns,attr"`
	Document  Document `xml:"Document"`
}

// Document contains the document metadata and features.
type Document struct {
	Name        string      `xml:"name"`
	Description string      `xml:"description,omitempty"`
	Styles      []Style     `xml:"Style,omitempty"`
	Placemarks  []Placemark `xml:"Placemark"`
}

// Style defines the visual appearance of features.
type Style struct {
	ID        string     `xml:"id,attr"`
	IconStyle *IconStyle `xml:"IconStyle,omitempty"`
	LineStyle *LineStyle `xml:"LineStyle,omitempty"`
}

// IconStyle defines how icons are displayed.
type IconStyle struct {
	Scale float64 `xml:"scale,omitempty"`
	Icon  Icon    `xml:"Icon"`
}

// Icon specifies the icon image.
type Icon struct {
	Href string `xml:"href"`
}

// LineStyle defines how tracks are drawn. Colours are aabbggrr.
type LineStyle struct {
	Color string  `xml:"color"`
	Width float64 `xml:"width"`
}

// Placemark is either the track of an aircraft or its last position.
type Placemark struct {
	Name         string        `xml:"name"`
	Description  string        `xml:"description,omitempty"`
	StyleURL     string        `xml:"styleUrl,omitempty"`
	Point        *Point        `xml:"Point,omitempty"`
	LineString   *LineString   `xml:"LineString,omitempty"`
	ExtendedData *ExtendedData `xml:"ExtendedData,omitempty"`
}

// Point represents a geographic location.
type Point struct {
	AltitudeMode string `xml:"altitudeMode,omitempty"`
	Coordinates  string `xml:"coordinates"` // Format: lon,lat,altitude
}

// LineString is a path through space-separated lon,lat,alt tuples.
type LineString struct {
	AltitudeMode string `xml:"altitudeMode"`
	Coordinates  string `xml:"coordinates"`
}

// ExtendedData holds custom data associated with a placemark.
type ExtendedData struct {
	Data []Data `xml:"Data"`
}

// Data represents a single piece of extended data.
type Data struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

// TrackPoint is one fix of an aircraft.
type TrackPoint struct {
	Time time.Time
	Lat  float64
	Lon  float64
	Alt  float64 // Metres.
}

// Track is the ordered fixes of one aircraft.
type Track struct {
	Address  string
	SourceID string
	Label    string // Registration or competition number, when known.
	Points   []TrackPoint
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	addresses := pflag.StringSliceP("address", "a", nil, "Aircraft addresses to export (repeatable)")
	since := pflag.Duration("since", 24*time.Hour, "Export fixes newer than this")
	limit := pflag.Int("limit", 10000, "Maximum fixes per aircraft")
	ddbLocator := pflag.String("ddb", "", "Device database file or URL, to label tracks with registrations")
	output := pflag.StringP("output", "o", "", "Output KML file (default: stdout)")
	verbose := pflag.BoolP("verbose", "v", false, "Verbose output")

	pflag.Parse()

	if len(*addresses) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one --address is required")
		os.Exit(2)
	}

	ctx := context.Background()
	stores, err := storage.Open(ctx, storage.Config{
		ClickHouse: cfg.Storage.ClickHouse,
		SQLitePath: cfg.Storage.SQLitePath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening stores: %v\n", err)
		os.Exit(1)
	}
	defer stores.Close()

	var lookup *ddb.Provider
	if *ddbLocator != "" {
		lookup = ddb.NewProvider(ctx, ddb.FileStore, *ddbLocator, 0, nil)
	}

	from := time.Now().Add(-*since)
	var tracks []Track
	for _, addr := range *addresses {
		addr = ddb.NormaliseAddress(addr)

		var points []TrackPoint
		var sourceID string
		switch {
		case stores.CH != nil:
			points, sourceID, err = historyTrack(ctx, stores.CH, addr, from, *limit)
		case stores.SQLite != nil:
			points, sourceID, err = archiveTrack(stores.SQLite, addr, from, *limit)
		default:
			fmt.Fprintln(os.Stderr, "Error: set CLICKHOUSE_HOST or SQLITE_PATH")
			os.Exit(1)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error querying %s: %v\n", addr, err)
			os.Exit(1)
		}
		if len(points) == 0 {
			if *verbose {
				fmt.Fprintf(os.Stderr, "No fixes for %s\n", addr)
			}
			continue
		}

		t := Track{Address: addr, SourceID: sourceID, Points: points}
		if lookup != nil {
			t.Label = trackLabel(lookup, addr)
		}
		tracks = append(tracks, t)
	}

	if len(tracks) == 0 {
		fmt.Fprintf(os.Stderr, "No fixes found matching criteria\n")
		os.Exit(0)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Exporting %d tracks to KML\n", len(tracks))
	}

	kml := generateKML(tracks, time.Now())

	xmlData, err := xml.MarshalIndent(kml, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating KML: %v\n", err)
		os.Exit(1)
	}
	xmlOutput := xml.Header + string(xmlData)

	if *output != "" {
		if err := os.WriteFile(*output, []byte(xmlOutput), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Wrote %s\n", *output)
		}
	} else {
		fmt.Println(xmlOutput)
	}
}

func historyTrack(ctx context.Context, ch *storage.ClickHouseDB, address string, since time.Time, limit int) ([]TrackPoint, string, error) {
	rows, err := ch.Query(ctx, storage.CHQueryParams{
		BeaconType: ogn.TypeAircraft,
		Address:    address,
		Since:      since,
		Limit:      limit,
	})
	if err != nil {
		return nil, "", err
	}
	points := make([]TrackPoint, 0, len(rows))
	var sourceID string
	for _, r := range rows {
		points = append(points, TrackPoint{Time: r.Timestamp, Lat: r.Lat, Lon: r.Lon, Alt: r.Alt})
		sourceID = r.SourceID
	}
	return points, sourceID, nil
}

func archiveTrack(db *storage.SQLiteDB, address string, since time.Time, limit int) ([]TrackPoint, string, error) {
	rows, err := db.Query(storage.QueryParams{
		BeaconType: ogn.TypeAircraft,
		Address:    address,
		Limit:      limit,
		OrderBy:    "timestamp",
	})
	if err != nil {
		return nil, "", err
	}
	var points []TrackPoint
	var sourceID string
	for _, r := range rows {
		if r.Timestamp.Before(since) {
			continue
		}
		points = append(points, TrackPoint{Time: r.Timestamp, Lat: r.Lat, Lon: r.Lon, Alt: r.Alt})
		sourceID = r.SourceID
	}
	return points, sourceID, nil
}

// trackLabel names a track after the registration and competition number,
// unless the owner has not allowed identification.
func trackLabel(lookup *ddb.Provider, address string) string {
	desc, ok := lookup.FindDescriptor(address)
	if !ok || !desc.Identified {
		return ""
	}
	var parts []string
	for _, s := range []string{desc.Registration, desc.CN} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// generateKML creates a KML document with a track line and a last-position
// marker per aircraft.
func generateKML(tracks []Track, generated time.Time) KML {
	var placemarks []Placemark
	for _, t := range tracks {
		points := append([]TrackPoint(nil), t.Points...)
		sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
		first, last := points[0], points[len(points)-1]

		name := t.SourceID
		if name == "" {
			name = t.Address
		}
		if t.Label != "" {
			name += " (" + t.Label + ")"
		}

		coords := make([]string, len(points))
		for i, p := range points {
			// KML coordinates are in the format: longitude,latitude,altitude
			coords[i] = fmt.Sprintf("%.6f,%.6f,%.0f", p.Lon, p.Lat, p.Alt)
		}

		placemarks = append(placemarks, Placemark{
			Name:        name,
			Description: fmt.Sprintf("Fixes: %d\nFirst: %s\nLast: %s", len(points), first.Time.UTC().Format("2006-01-02 15:04:05 UTC"), last.Time.UTC().Format("2006-01-02 15:04:05 UTC")),
			StyleURL:    "#trackStyle",
			LineString:  &LineString{AltitudeMode: "absolute", Coordinates: strings.Join(coords, " ")},
			ExtendedData: &ExtendedData{
				Data: []Data{
					{Name: "address", Value: t.Address},
					{Name: "fixes", Value: fmt.Sprintf("%d", len(points))},
					{Name: "first_seen", Value: first.Time.UTC().Format(time.RFC3339)},
					{Name: "last_seen", Value: last.Time.UTC().Format(time.RFC3339)},
				},
			},
		})
		placemarks = append(placemarks, Placemark{
			Name:     name,
			StyleURL: "#aircraftStyle",
			Point:    &Point{AltitudeMode: "absolute", Coordinates: coords[len(coords)-1]},
		})
	}

	return KML{
		Namespace: "http://www.opengis.net/kml/2.2",
		Document: Document{
			Name:        "OGN Tracks",
			Description: fmt.Sprintf("Aircraft tracks decoded from OGN beacons. Generated %s.", generated.Format("2006-01-02 15:04:05")),
			Styles: []Style{
				{
					ID:        "trackStyle",
					LineStyle: &LineStyle{Color: "ff0000ff", Width: 2},
				},
				{
					ID: "aircraftStyle",
					IconStyle: &IconStyle{
						Scale: 0.8,
						Icon: Icon{
							Href: "http://maps.google.com/mapfiles/kml/shapes/airports.png",
						},
					},
				},
			},
			Placemarks: placemarks,
		},
	}
}
