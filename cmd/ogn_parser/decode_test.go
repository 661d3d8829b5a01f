package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ogn_parser/internal/ddb"
)

const aircraftLine = "ZK-GSC>APRS,qAS,Omarama:/165202h4429.25S/16959.33E'/A=001407 id05C821EA +020fpm +0.0rot 16.8dB 0e -3.1kHz gps1x3 hear1084 hearB597 hearB598"

type fixedLookup map[string]ddb.Descriptor

func (f fixedLookup) FindDescriptor(address string) (ddb.Descriptor, bool) {
	d, ok := f[address]
	return d, ok
}

func TestParseRef(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	got, err := parseRef("", now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = parseRef("2015-04-02", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2015, 4, 2, 12, 0, 0, 0, time.UTC), got)

	got, err = parseRef("2015-04-02T18:30:00+02:00", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2015, 4, 2, 16, 30, 0, 0, time.UTC), got)

	_, err = parseRef("yesterday", now)
	assert.Error(t, err)
}

func TestDecodeLine(t *testing.T) {
	ref := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	lookup := fixedLookup{"C821EA": {Address: "C821EA", Registration: "ZK-GSC", CN: "SC", Tracked: true, Identified: true}}

	out := decodeLine(aircraftLine, ref, false, lookup)
	require.Empty(t, out.Error)
	assert.Equal(t, "aircraft", out.Type)
	require.NotNil(t, out.Sighting)
	assert.Equal(t, "ZK-GSC_ZK-GSC_SC", out.Sighting.LogFileID)
	assert.Nil(t, out.Trace)

	out = decodeLine("no header here", ref, false, nil)
	assert.Equal(t, "malformed_header", out.ErrorKind)
	assert.Nil(t, out.Beacon)
}

func TestDecodeLineTrace(t *testing.T) {
	ref := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	out := decodeLine(aircraftLine, ref, true, nil)
	require.Empty(t, out.Error)
	require.NotEmpty(t, out.Trace)

	var matched *TraceOut
	for i := range out.Trace {
		if out.Trace[i].Matched {
			matched = &out.Trace[i]
		}
	}
	require.NotNil(t, matched, "one parser takes the line")
	assert.True(t, matched.QuickCheck)
	assert.NotEmpty(t, matched.Tokens)
}

func TestPrintDecodeStats(t *testing.T) {
	var buf bytes.Buffer
	printDecodeStats(&buf, &DecodeStats{
		Lines:  3,
		Parsed: 2,
		ByType: map[string]int{"receiver_status": 1, "aircraft": 1},
		ByKind: map[string]int{"malformed_position": 1},
	})

	out := buf.String()
	assert.Contains(t, out, "lines=3 parsed=2 failed=1")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("aircraft")), bytes.Index(buf.Bytes(), []byte("receiver_status")))
	assert.Contains(t, out, "malformed_position")
}
