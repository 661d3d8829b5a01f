package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ogn_parser/internal/ddb"
	"ogn_parser/internal/decoder"
	"ogn_parser/internal/state"
	"ogn_parser/internal/storage"
)

const (
	aircraftLine = "ZK-GSC>APRS,qAS,Omarama:/165202h4429.25S/16959.33E'/A=001407 id05C821EA +020fpm +0.0rot 16.8dB 0e -3.1kHz gps1x3 hear1084 hearB597 hearB598"
	positionLine = "VITACURA2>APRS,TCPIP*,qAC,GLIDERN3:/042136h3322.81SI07034.95W&/A=002345 v0.2.5.ARM CPU:0.3 RAM:695.0/970.5MB +51.5C RF:+0-0.0ppm/+1.32dB"
	badLine      = "SRC>APRS,qAS,X:/16520xh4429.25S/16959.33E'/A=001407 id05C821EA"
)

var (
	refTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	nowTime = time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC)
)

type fakeDescriptors map[string]ddb.Descriptor

func (f fakeDescriptors) FindDescriptor(address string) (ddb.Descriptor, bool) {
	d, ok := f[address]
	return d, ok
}

type fakeReceivers struct {
	receivers map[string]storage.ReceiverState
	err       error
}

func (f *fakeReceivers) GetReceiver(_ context.Context, name string) (*storage.ReceiverState, error) {
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.receivers[name]; ok {
		return &r, nil
	}
	return nil, nil
}

type fakeHistory struct {
	stats *storage.HistoryStats
	err   error
}

func (f *fakeHistory) GetHistoryStats(context.Context) (*storage.HistoryStats, error) {
	return f.stats, f.err
}

func strPtr(s string) *string { return &s }

func newTestServer(t *testing.T, src Sources, cfg Config) http.Handler {
	t.Helper()
	s := NewServer(src, cfg, nil)
	s.now = func() time.Time { return nowTime }
	return s.Router()
}

func do(t *testing.T, h http.Handler, method, target string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func trackerWith(t *testing.T, lines ...string) *state.Tracker {
	t.Helper()
	tr := state.NewTracker()
	for _, l := range lines {
		b, err := decoder.ParseAt(l, refTime)
		require.NoError(t, err)
		tr.Update(b)
	}
	return tr
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestServer(t, Sources{}, Config{Port: 8081})

	rec := do(t, h, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "2024-03-10T17:00:00Z", resp["time"])
}

func TestAuthMiddleware(t *testing.T) {
	h := newTestServer(t, Sources{}, Config{
		Port:        8081,
		AuthEnabled: true,
		APIKeys:     []string{"test-key-123", "another-key"},
	})

	tests := []struct {
		name       string
		target     string
		headers    map[string]string
		wantStatus int
	}{
		{"no key", "/stats", nil, http.StatusUnauthorized},
		{"invalid key", "/stats", map[string]string{"X-API-Key": "wrong"}, http.StatusForbidden},
		{"valid X-API-Key", "/stats", map[string]string{"X-API-Key": "test-key-123"}, http.StatusOK},
		{"valid bearer", "/stats", map[string]string{"Authorization": "Bearer another-key"}, http.StatusOK},
		{"valid query param", "/stats?api_key=test-key-123", nil, http.StatusOK},
		{"health skips auth", "/health", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.target, "", tt.headers)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	h := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))

	rec := do(t, h, http.MethodOptions, "/api/v1/decode", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
}

func TestGetDescriptor(t *testing.T) {
	descs := fakeDescriptors{
		"DD4711": {Address: "DD4711", DeviceType: ddb.DeviceFLARM, Model: "ASK-21", Registration: "D-KEKS", CN: "KS", Tracked: true, Identified: true},
		"DDBEEF": {Address: "DDBEEF", DeviceType: ddb.DeviceFLARM, Model: "LS-4", Registration: "D-1234", CN: "X4", Tracked: true, Identified: false},
	}
	h := newTestServer(t, Sources{Descriptors: descs}, Config{})

	t.Run("identified", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/descriptor/dd4711", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp DescriptorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "D-KEKS", resp.Registration)
		assert.Equal(t, "KS", resp.CN)
		assert.Equal(t, "ASK-21", resp.Model)
	})

	t.Run("not identified", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/descriptor/DDBEEF", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp DescriptorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.False(t, resp.Identified)
		assert.Empty(t, resp.Registration)
		assert.Empty(t, resp.CN)
		assert.Empty(t, resp.Model)
	})

	t.Run("unknown", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/descriptor/000000", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("not configured", func(t *testing.T) {
		rec := do(t, newTestServer(t, Sources{}, Config{}), http.MethodGet, "/descriptor/DD4711", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGetAircraft(t *testing.T) {
	cached := &storage.AircraftSighting{Address: "DD4711", SourceID: "FLRDD4711", Registration: "D-KEKS"}
	var lookedUp []string
	fromCache := func(_ context.Context, address string) (*storage.AircraftSighting, error) {
		lookedUp = append(lookedUp, address)
		if address == cached.Address {
			return cached, nil
		}
		return nil, nil
	}

	h := newTestServer(t, Sources{
		Sightings: []SightingFunc{fromCache},
		Tracker:   trackerWith(t, aircraftLine),
	}, Config{})

	rec := do(t, h, http.MethodGet, "/aircraft/dd4711", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sighting storage.AircraftSighting
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sighting))
	assert.Equal(t, "D-KEKS", sighting.Registration)

	// Falls back to the tracker when no store has the aircraft.
	rec = do(t, h, http.MethodGet, "/aircraft/C821EA", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tracked state.Aircraft
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tracked))
	assert.Equal(t, "ZK-GSC", tracked.SourceID)

	rec = do(t, h, http.MethodGet, "/aircraft/ABCDEF", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, []string{"DD4711", "C821EA", "ABCDEF"}, lookedUp)
}

func TestGetAircraftErrors(t *testing.T) {
	failing := func(context.Context, string) (*storage.AircraftSighting, error) {
		return nil, errors.New("redis down")
	}

	rec := do(t, newTestServer(t, Sources{Sightings: []SightingFunc{failing}}, Config{}), http.MethodGet, "/aircraft/DD4711", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, newTestServer(t, Sources{}, Config{}), http.MethodGet, "/aircraft/DD4711", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestActiveAircraft(t *testing.T) {
	h := newTestServer(t, Sources{Tracker: trackerWith(t, aircraftLine)}, Config{})

	tests := []struct {
		query      string
		wantStatus int
		wantCount  int
	}{
		{"", http.StatusOK, 1},
		{"?within=1m", http.StatusOK, 0},
		{"?within=2h", http.StatusOK, 1},
		{"?within=soon", http.StatusBadRequest, 0},
		{"?within=-5m", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/aircraft"+tt.query, "", nil)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var list []state.Aircraft
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
			assert.Len(t, list, tt.wantCount)
		})
	}
}

func TestGetReceiver(t *testing.T) {
	store := &fakeReceivers{receivers: map[string]storage.ReceiverState{
		"LFNX": {Name: "LFNX", Version: strPtr("0.2.2")},
	}}
	h := newTestServer(t, Sources{Receivers: store, Tracker: trackerWith(t, positionLine)}, Config{})

	rec := do(t, h, http.MethodGet, "/receiver/LFNX", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"0.2.2"`)

	rec = do(t, h, http.MethodGet, "/receiver/VITACURA2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rx state.Receiver
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rx))
	assert.True(t, rx.HasPosition)

	rec = do(t, h, http.MethodGet, "/receiver/NOWHERE", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	store.err = errors.New("connection refused")
	rec = do(t, h, http.MethodGet, "/receiver/LFNX", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestQueryBeacons(t *testing.T) {
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	b, err := decoder.ParseAt(aircraftLine, refTime)
	require.NoError(t, err)
	row := storage.NewBeaconRow(b)
	_, err = db.Insert(storage.InsertParams{SessionID: "s1", ReceivedAt: nowTime, RawLine: aircraftLine, Row: &row, Beacon: b})
	require.NoError(t, err)
	_, err = db.Insert(storage.InsertParams{SessionID: "s1", ReceivedAt: nowTime, RawLine: badLine, ErrorKind: "malformed_position"})
	require.NoError(t, err)

	h := newTestServer(t, Sources{Archive: db}, Config{})

	rec := do(t, h, http.MethodGet, "/beacons?address=C821EA", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var results []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.Equal(t, aircraftLine, results[0]["raw_line"])
	beacon, ok := results[0]["beacon"].(map[string]any)
	require.True(t, ok, "decoded beacon is embedded")
	assert.Equal(t, "C821EA", beacon["address"])

	rec = do(t, h, http.MethodGet, "/beacons?failed=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	results = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.Equal(t, "malformed_position", results[0]["error_kind"])
	assert.NotContains(t, results[0], "beacon")

	rec = do(t, h, http.MethodGet, "/beacons?limit=lots", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats StatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	require.NotNil(t, stats.Archive)
	assert.Equal(t, 2, stats.Archive.TotalLines)
	assert.Nil(t, stats.Tracker)
}

func TestQueryBeaconsWithoutArchive(t *testing.T) {
	rec := do(t, newTestServer(t, Sources{}, Config{}), http.MethodGet, "/beacons", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDecode(t *testing.T) {
	h := newTestServer(t, Sources{}, Config{})

	t.Run("json", func(t *testing.T) {
		body, err := json.Marshal(map[string]any{
			"lines":          []string{aircraftLine, "# aprsc 2.1.4", "", badLine},
			"reference_time": refTime.Format(time.RFC3339),
		})
		require.NoError(t, err)

		rec := do(t, h, http.MethodPost, "/decode", string(body), map[string]string{"Content-Type": "application/json"})
		require.Equal(t, http.StatusOK, rec.Code)

		var results []struct {
			Line      string          `json:"line"`
			Type      string          `json:"type"`
			Beacon    json.RawMessage `json:"beacon"`
			ErrorKind string          `json:"error_kind"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&results))
		require.Len(t, results, 2, "comments and blank lines are skipped")

		assert.Equal(t, "aircraft", results[0].Type)
		assert.Contains(t, string(results[0].Beacon), `"2024-03-10T16:52:02Z"`)
		assert.Equal(t, "malformed_position", results[1].ErrorKind)
		assert.Empty(t, results[1].Type)
	})

	t.Run("plain text", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/decode", positionLine+"\r\n", map[string]string{"Content-Type": "text/plain"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"receiver_position"`)
	})

	t.Run("invalid json", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/decode", "{", map[string]string{"Content-Type": "application/json"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/decode", "# only a comment\n", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too many lines", func(t *testing.T) {
		body := strings.Repeat(aircraftLine+"\n", maxDecodeLines+1)
		rec := do(t, h, http.MethodPost, "/decode", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStatsWithHistory(t *testing.T) {
	history := &fakeHistory{stats: &storage.HistoryStats{
		Total:     12,
		ByType:    map[string]uint64{"aircraft": 10, "receiver_status": 2},
		Receivers: []string{"LFNX", "Omarama"},
	}}
	h := newTestServer(t, Sources{History: history}, Config{})

	rec := do(t, h, http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats StatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	require.NotNil(t, stats.History)
	assert.Equal(t, uint64(12), stats.History.Total)
	assert.Equal(t, uint64(10), stats.History.ByType["aircraft"])
	assert.Equal(t, []string{"LFNX", "Omarama"}, stats.History.Receivers)
	assert.Nil(t, stats.Archive)

	history.err = errors.New("clickhouse down")
	rec = do(t, h, http.MethodGet, "/stats", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
