package api

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ogn_parser/internal/aprs"
	"ogn_parser/internal/ddb"
	"ogn_parser/internal/decoder"
	"ogn_parser/internal/ogn"
	"ogn_parser/internal/state"
	"ogn_parser/internal/storage"
)

// Request limits.
const (
	maxDecodeLines = 1000
	maxDecodeBody  = 1 << 20
)

// DescriptorResponse is the JSON response for descriptor lookups.
type DescriptorResponse struct {
	Address      string `json:"address"`
	DeviceType   string `json:"device_type,omitempty"`
	Model        string `json:"model,omitempty"`
	Registration string `json:"registration,omitempty"`
	CN           string `json:"cn,omitempty"`
	Tracked      bool   `json:"tracked"`
	Identified   bool   `json:"identified"`
}

func descriptorToResponse(d ddb.Descriptor) DescriptorResponse {
	resp := DescriptorResponse{
		Address:    d.Address,
		DeviceType: d.DeviceType,
		Tracked:    d.Tracked,
		Identified: d.Identified,
	}
	// Owners who opted out of identification keep their details private.
	if d.Identified {
		resp.Model = d.Model
		resp.Registration = d.Registration
		resp.CN = d.CN
	}
	return resp
}

func (s *Server) handleGetDescriptor(w http.ResponseWriter, r *http.Request) {
	if s.src.Descriptors == nil {
		writeError(w, http.StatusServiceUnavailable, "Descriptor database not configured")
		return
	}

	address := ddb.NormaliseAddress(chi.URLParam(r, "address"))
	desc, ok := s.src.Descriptors.FindDescriptor(address)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown device address")
		return
	}
	writeJSON(w, http.StatusOK, descriptorToResponse(desc))
}

func (s *Server) handleGetAircraft(w http.ResponseWriter, r *http.Request) {
	address := ddb.NormaliseAddress(chi.URLParam(r, "address"))

	for _, get := range s.src.Sightings {
		sighting, err := get(r.Context(), address)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if sighting != nil {
			writeJSON(w, http.StatusOK, sighting)
			return
		}
	}

	if s.src.Tracker != nil {
		if a, ok := s.src.Tracker.GetAircraft(address); ok {
			writeJSON(w, http.StatusOK, a)
			return
		}
	}

	if len(s.src.Sightings) == 0 && s.src.Tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "No sighting store configured")
		return
	}
	writeError(w, http.StatusNotFound, "No recent sighting for aircraft")
}

func (s *Server) handleActiveAircraft(w http.ResponseWriter, r *http.Request) {
	if s.src.Tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "Tracker not running")
		return
	}

	within := 10 * time.Minute
	if v := r.URL.Query().Get("within"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid duration for within (e.g. 15m)")
			return
		}
		within = d
	}

	writeJSON(w, http.StatusOK, s.src.Tracker.ActiveAircraft(within, s.now()))
}

func (s *Server) handleGetReceiver(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if s.src.Receivers != nil {
		rx, err := s.src.Receivers.GetReceiver(r.Context(), name)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rx != nil {
			writeJSON(w, http.StatusOK, rx)
			return
		}
	}

	if s.src.Tracker != nil {
		if rx, ok := s.src.Tracker.GetReceiver(name); ok {
			writeJSON(w, http.StatusOK, rx)
			return
		}
	}

	if s.src.Receivers == nil && s.src.Tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "No receiver store configured")
		return
	}
	writeError(w, http.StatusNotFound, "Unknown receiver")
}

// ArchivedResponse is one archived line with its decoded beacon.
type ArchivedResponse struct {
	storage.ArchivedBeacon
	Beacon json.RawMessage `json:"beacon,omitempty"`
}

func (s *Server) handleQueryBeacons(w http.ResponseWriter, r *http.Request) {
	if s.src.Archive == nil {
		writeError(w, http.StatusServiceUnavailable, "Archive not configured")
		return
	}

	q := r.URL.Query()
	p := storage.QueryParams{
		BeaconType: q.Get("type"),
		SourceID:   q.Get("source"),
		Address:    q.Get("address"),
		Receiver:   q.Get("receiver"),
		SessionID:  q.Get("session"),
		ErrorKind:  q.Get("error_kind"),
		Failed:     q.Get("failed") == "true",
		FullText:   q.Get("q"),
		OrderBy:    q.Get("order"),
		OrderDesc:  q.Get("desc") == "true",
	}
	for name, into := range map[string]*int{"limit": &p.Limit, "offset": &p.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "Invalid "+name)
				return
			}
			*into = n
		}
	}
	if p.Limit > 1000 {
		p.Limit = 1000
	}

	rows, err := s.src.Archive.Query(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]ArchivedResponse, 0, len(rows))
	for _, b := range rows {
		resp := ArchivedResponse{ArchivedBeacon: b}
		if b.BeaconJSON != "" {
			resp.Beacon = json.RawMessage(b.BeaconJSON)
		}
		results = append(results, resp)
	}
	writeJSON(w, http.StatusOK, results)
}

// StatsResponse combines tracker, archive and history statistics.
type StatsResponse struct {
	Tracker *state.Stats          `json:"tracker,omitempty"`
	Archive *storage.Stats        `json:"archive,omitempty"`
	History *storage.HistoryStats `json:"history,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp StatsResponse
	if s.src.Tracker != nil {
		st := s.src.Tracker.GetStats()
		resp.Tracker = &st
	}
	if s.src.Archive != nil {
		st, err := s.src.Archive.GetStats()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Archive = st
	}
	if s.src.History != nil {
		st, err := s.src.History.GetHistoryStats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.History = st
	}
	writeJSON(w, http.StatusOK, resp)
}

// DecodeRequest is the JSON body for the decode endpoint. Plain text bodies
// are read as one line per row.
type DecodeRequest struct {
	Lines []string `json:"lines"`
	// Reference time for resolving time-of-day stamps; defaults to now.
	ReferenceTime aprs.FlexTime `json:"reference_time"`
}

// DecodeResult is the outcome for one submitted line.
type DecodeResult struct {
	Line      string     `json:"line"`
	Type      string     `json:"type,omitempty"`
	Beacon    ogn.Beacon `json:"beacon,omitempty"`
	Error     string     `json:"error,omitempty"`
	ErrorKind string     `json:"error_kind,omitempty"`
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	body := io.LimitReader(r.Body, maxDecodeBody)

	var req DecodeRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
			return
		}
	} else {
		scanner := bufio.NewScanner(body)
		for scanner.Scan() {
			req.Lines = append(req.Lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid body: "+err.Error())
			return
		}
	}

	var lines []string
	for _, l := range req.Lines {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" || aprs.IsComment(l) {
			continue
		}
		lines = append(lines, l)
	}
	if len(lines) == 0 {
		writeError(w, http.StatusBadRequest, "No lines to decode")
		return
	}
	if len(lines) > maxDecodeLines {
		writeError(w, http.StatusBadRequest, "Maximum 1000 lines per request")
		return
	}

	ref := req.ReferenceTime.Time
	if ref.IsZero() {
		ref = s.now()
	}

	results := make([]DecodeResult, 0, len(lines))
	for _, l := range lines {
		res := DecodeResult{Line: l}
		b, err := decoder.ParseAt(l, ref)
		if err != nil {
			res.Error = err.Error()
			res.ErrorKind = ogn.Kind(err)
		} else {
			res.Type = b.Type()
			res.Beacon = b
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, results)
}
