package pipeline

import (
	"maps"
	"sync"
	"sync/atomic"
)

// Stats counts pipeline activity. It is safe for concurrent use.
type Stats struct {
	lines      atomic.Uint64
	parsedN    atomic.Uint64
	failedN    atomic.Uint64
	duplicates atomic.Uint64

	mu         sync.Mutex
	byType     map[string]uint64
	byKind     map[string]uint64
	sinkErrors map[string]uint64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Lines      uint64            `json:"lines"`
	Parsed     uint64            `json:"parsed"`
	Failed     uint64            `json:"failed"`
	Duplicates uint64            `json:"duplicates"`
	ByType     map[string]uint64 `json:"by_type"`
	ByKind     map[string]uint64 `json:"failed_by_kind"`
	SinkErrors map[string]uint64 `json:"sink_errors,omitempty"`
}

// NewStats returns zeroed counters.
func NewStats() *Stats {
	return &Stats{
		byType:     make(map[string]uint64),
		byKind:     make(map[string]uint64),
		sinkErrors: make(map[string]uint64),
	}
}

func (s *Stats) line()      { s.lines.Add(1) }
func (s *Stats) duplicate() { s.duplicates.Add(1) }

func (s *Stats) parsed(beaconType string) {
	s.parsedN.Add(1)
	s.mu.Lock()
	s.byType[beaconType]++
	s.mu.Unlock()
}

func (s *Stats) failed(kind string) {
	s.failedN.Add(1)
	s.mu.Lock()
	s.byKind[kind]++
	s.mu.Unlock()
}

func (s *Stats) sinkError(name string) {
	s.mu.Lock()
	s.sinkErrors[name]++
	s.mu.Unlock()
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Lines:      s.lines.Load(),
		Parsed:     s.parsedN.Load(),
		Failed:     s.failedN.Load(),
		Duplicates: s.duplicates.Load(),
		ByType:     maps.Clone(s.byType),
		ByKind:     maps.Clone(s.byKind),
		SinkErrors: maps.Clone(s.sinkErrors),
	}
}
