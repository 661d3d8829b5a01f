package pipeline

import (
	"context"
	"sync"

	"ogn_parser/internal/enrichment"
	"ogn_parser/internal/extractor"
	"ogn_parser/internal/ogn"
	"ogn_parser/internal/state"
	"ogn_parser/internal/storage"
)

// ArchiveSink stores every line, decoded or not, in the SQLite archive.
type ArchiveSink struct {
	db *storage.SQLiteDB
}

func NewArchiveSink(db *storage.SQLiteDB) *ArchiveSink { return &ArchiveSink{db: db} }

func (s *ArchiveSink) Name() string { return "sqlite" }

func (s *ArchiveSink) Handle(_ context.Context, ev Event) error {
	p := storage.InsertParams{
		SessionID:  ev.SessionID,
		ReceivedAt: ev.ReceivedAt,
		RawLine:    ev.Line,
		ErrorKind:  ogn.Kind(ev.Err),
	}
	if ev.Beacon != nil {
		row := storage.NewBeaconRow(ev.Beacon)
		p.Row = &row
		p.Beacon = ev.Beacon
	}
	_, err := s.db.Insert(p)
	return err
}

// HistoryWriter stores batches of beacon rows. *storage.ClickHouseDB
// implements it.
type HistoryWriter interface {
	InsertBatch(ctx context.Context, sessionID string, rows []storage.BeaconRow) error
}

// DefaultBatchSize is the number of rows buffered before a history insert.
const DefaultBatchSize = 1000

// HistorySink batches decoded beacons into the analytics store.
type HistorySink struct {
	w         HistoryWriter
	batchSize int

	mu        sync.Mutex
	sessionID string
	rows      []storage.BeaconRow
}

func NewHistorySink(w HistoryWriter, batchSize int) *HistorySink {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &HistorySink{w: w, batchSize: batchSize}
}

func (s *HistorySink) Name() string { return "clickhouse" }

func (s *HistorySink) Handle(ctx context.Context, ev Event) error {
	if ev.Beacon == nil {
		return nil
	}

	s.mu.Lock()
	s.sessionID = ev.SessionID
	s.rows = append(s.rows, storage.NewBeaconRow(ev.Beacon))
	if len(s.rows) < s.batchSize {
		s.mu.Unlock()
		return nil
	}
	rows, sessionID := s.rows, s.sessionID
	s.rows = make([]storage.BeaconRow, 0, s.batchSize)
	s.mu.Unlock()

	return s.w.InsertBatch(ctx, sessionID, rows)
}

// Flush writes any buffered rows.
func (s *HistorySink) Flush(ctx context.Context) error {
	s.mu.Lock()
	rows, sessionID := s.rows, s.sessionID
	s.rows = nil
	s.mu.Unlock()

	return s.w.InsertBatch(ctx, sessionID, rows)
}

// StateWriter keeps latest-state rows. *storage.PostgresDB implements it.
type StateWriter interface {
	UpsertSighting(ctx context.Context, s storage.AircraftSighting) error
	UpsertReceiver(ctx context.Context, r storage.ReceiverState) error
}

// StateSink upserts enriched aircraft sightings and merged receiver state.
type StateSink struct {
	w      StateWriter
	lookup enrichment.DescriptorLookup
}

func NewStateSink(w StateWriter, lookup enrichment.DescriptorLookup) *StateSink {
	return &StateSink{w: w, lookup: lookup}
}

func (s *StateSink) Name() string { return "postgres" }

func (s *StateSink) Handle(ctx context.Context, ev Event) error {
	switch b := ev.Beacon.(type) {
	case ogn.AircraftBeacon:
		if sighting := enrichment.ExtractEnrichment(b, s.lookup); sighting != nil {
			return s.w.UpsertSighting(ctx, *sighting)
		}
	case ogn.ReceiverBeacon:
		if u := extractor.Extract(b).Receiver; u != nil {
			return s.w.UpsertReceiver(ctx, ReceiverState(u))
		}
	}
	return nil
}

// ReceiverState converts a receiver update into a merge row. Only the fields
// the beacon carried are set.
func ReceiverState(u *extractor.ReceiverUpdate) storage.ReceiverState {
	r := storage.ReceiverState{Name: u.Name, ServerName: u.ServerName, SeenAt: u.SeenAt}
	if p := u.Position; p != nil {
		r.Latitude, r.Longitude, r.Altitude = &p.Latitude, &p.Longitude, &p.Altitude
	}
	if h := u.Health; h != nil {
		if h.Version != "" {
			r.Version = &h.Version
		}
		if h.Platform != "" {
			r.Platform = &h.Platform
		}
		r.CPULoad = &h.CPULoad
		r.FreeRAM = &h.FreeRAM
		r.TotalRAM = &h.TotalRAM
		r.CPUTemp = &h.CPUTemp
		r.RecCrystalCorrection = &h.RecCrystalCorrection
		r.RecCrystalCorrectionFine = &h.RecCrystalCorrectionFine
		r.RecInputNoise = &h.RecInputNoise
		r.AircraftsReceived = &h.AircraftsReceived
		r.AircraftsVisible = &h.AircraftsVisible
	}
	return r
}

// CacheWriter keeps the latest beacons with an expiry. *cache.Client
// implements it.
type CacheWriter interface {
	StoreAircraft(ctx context.Context, s *storage.AircraftSighting) error
	StoreReceiver(ctx context.Context, b ogn.ReceiverBeacon) error
}

// CacheSink stores the latest enriched sighting per aircraft and the latest
// beacon per receiver.
type CacheSink struct {
	w      CacheWriter
	lookup enrichment.DescriptorLookup
}

func NewCacheSink(w CacheWriter, lookup enrichment.DescriptorLookup) *CacheSink {
	return &CacheSink{w: w, lookup: lookup}
}

func (s *CacheSink) Name() string { return "redis" }

func (s *CacheSink) Handle(ctx context.Context, ev Event) error {
	switch b := ev.Beacon.(type) {
	case ogn.AircraftBeacon:
		if sighting := enrichment.ExtractEnrichment(b, s.lookup); sighting != nil {
			return s.w.StoreAircraft(ctx, sighting)
		}
	case ogn.ReceiverBeacon:
		return s.w.StoreReceiver(ctx, b)
	}
	return nil
}

// Publisher sends decoded beacons downstream. *nats.Client implements it.
type Publisher interface {
	PublishBeacon(b ogn.Beacon) error
}

// PublishSink republishes decoded beacons. Aircraft that ask not to be
// tracked are not republished.
type PublishSink struct {
	p Publisher
}

func NewPublishSink(p Publisher) *PublishSink { return &PublishSink{p: p} }

func (s *PublishSink) Name() string { return "nats" }

func (s *PublishSink) Handle(_ context.Context, ev Event) error {
	if ev.Beacon == nil {
		return nil
	}
	if a, ok := ev.Beacon.(ogn.AircraftBeacon); ok && a.NoTracking {
		return nil
	}
	return s.p.PublishBeacon(ev.Beacon)
}

// TrackerSink feeds the in-memory fleet tracker.
type TrackerSink struct {
	t *state.Tracker
}

func NewTrackerSink(t *state.Tracker) *TrackerSink { return &TrackerSink{t: t} }

func (s *TrackerSink) Name() string { return "tracker" }

func (s *TrackerSink) Handle(_ context.Context, ev Event) error {
	if ev.Beacon != nil {
		s.t.Update(ev.Beacon)
	}
	return nil
}
