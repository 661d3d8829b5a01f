// Package state tracks the aircraft and receivers currently visible on the feed.
package state

import (
	"sort"
	"sync"
	"time"

	"ogn_parser/internal/extractor"
	"ogn_parser/internal/ogn"
)

// Tracker holds the latest state per aircraft and receiver. It is safe for
// concurrent use; getters return copies.
type Tracker struct {
	mu sync.RWMutex

	aircraft  map[string]*Aircraft
	receivers map[string]*Receiver
	relayed   map[string]map[string]struct{} // receiver -> aircraft addresses

	// Callbacks for change notifications, run with the lock held.
	onAircraftNew func(Aircraft)
	onReceiverNew func(Receiver)
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		aircraft:  make(map[string]*Aircraft),
		receivers: make(map[string]*Receiver),
		relayed:   make(map[string]map[string]struct{}),
	}
}

// OnAircraftNew sets a callback for when a new aircraft is seen.
func (t *Tracker) OnAircraftNew(fn func(Aircraft)) {
	t.mu.Lock()
	t.onAircraftNew = fn
	t.mu.Unlock()
}

// OnReceiverNew sets a callback for when a new receiver is seen.
func (t *Tracker) OnReceiverNew(fn func(Receiver)) {
	t.mu.Lock()
	t.onReceiverNew = fn
	t.mu.Unlock()
}

// Update folds a decoded beacon into the tracked state. Beacons older than
// the stored state only bump the message count.
func (t *Tracker) Update(b ogn.Beacon) {
	data := extractor.Extract(b)

	t.mu.Lock()
	defer t.mu.Unlock()

	if a := data.Aircraft; a != nil && a.Address != "" {
		t.updateAircraft(a)
	}
	if r := data.Receiver; r != nil && r.Name != "" {
		t.updateReceiver(r)
	}
}

func (t *Tracker) updateAircraft(u *extractor.AircraftUpdate) {
	a, ok := t.aircraft[u.Address]
	if !ok {
		a = &Aircraft{Address: u.Address, FirstSeen: u.SeenAt}
		t.aircraft[u.Address] = a
	}
	a.MsgCount++

	if u.Receiver != "" {
		set := t.relayed[u.Receiver]
		if set == nil {
			set = make(map[string]struct{})
			t.relayed[u.Receiver] = set
		}
		set[u.Address] = struct{}{}
		if r, ok := t.receivers[u.Receiver]; ok {
			r.Relayed = len(set)
		}
	}

	if ok && u.SeenAt.Before(a.LastSeen) {
		return
	}
	a.SourceID = u.SourceID
	a.AddressType = u.AddressType
	a.AircraftType = u.AircraftType
	a.Receiver = u.Receiver
	a.Latitude, a.Longitude, a.Altitude = u.Latitude, u.Longitude, u.Altitude
	a.Track, a.GroundSpeed, a.ClimbRate = u.Track, u.GroundSpeed, u.ClimbRate
	a.LastSeen = u.SeenAt
	if u.SeenAt.Before(a.FirstSeen) {
		a.FirstSeen = u.SeenAt
	}

	if !ok && t.onAircraftNew != nil {
		t.onAircraftNew(*a)
	}
}

func (t *Tracker) updateReceiver(u *extractor.ReceiverUpdate) {
	r, ok := t.receivers[u.Name]
	if !ok {
		r = &Receiver{Name: u.Name, FirstSeen: u.SeenAt, Relayed: len(t.relayed[u.Name])}
		t.receivers[u.Name] = r
	}
	r.MsgCount++
	if u.ServerName != "" {
		r.ServerName = u.ServerName
	}
	if p := u.Position; p != nil {
		r.Latitude, r.Longitude, r.Altitude = p.Latitude, p.Longitude, p.Altitude
		r.HasPosition = true
	}
	if h := u.Health; h != nil {
		if h.Version != "" {
			r.Version = h.Version
		}
		if h.Platform != "" {
			r.Platform = h.Platform
		}
	}
	if u.SeenAt.After(r.LastSeen) {
		r.LastSeen = u.SeenAt
	}
	if u.SeenAt.Before(r.FirstSeen) {
		r.FirstSeen = u.SeenAt
	}

	if !ok && t.onReceiverNew != nil {
		t.onReceiverNew(*r)
	}
}

// GetAircraft returns the state of an aircraft by address.
func (t *Tracker) GetAircraft(address string) (Aircraft, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.aircraft[address]
	if !ok {
		return Aircraft{}, false
	}
	return *a, true
}

// GetReceiver returns the state of a receiver by name.
func (t *Tracker) GetReceiver(name string) (Receiver, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.receivers[name]
	if !ok {
		return Receiver{}, false
	}
	return *r, true
}

// ActiveAircraft returns aircraft seen within the given duration of now,
// most recent first.
func (t *Tracker) ActiveAircraft(within time.Duration, now time.Time) []Aircraft {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := now.Add(-within)
	result := make([]Aircraft, 0)
	for _, a := range t.aircraft {
		if a.LastSeen.After(cutoff) {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LastSeen.After(result[j].LastSeen) })
	return result
}

// Receivers returns all tracked receivers ordered by name.
func (t *Tracker) Receivers() []Receiver {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]Receiver, 0, len(t.receivers))
	for _, r := range t.receivers {
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// CleanupStale removes aircraft and receivers last seen before now minus
// olderThan and returns how many entries were dropped.
func (t *Tracker) CleanupStale(olderThan time.Duration, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-olderThan)
	removed := 0

	for key, a := range t.aircraft {
		if a.LastSeen.Before(cutoff) {
			delete(t.aircraft, key)
			removed++
		}
	}
	for key, r := range t.receivers {
		if r.LastSeen.Before(cutoff) {
			delete(t.receivers, key)
			delete(t.relayed, key)
			removed++
		}
	}

	// Relayed counts only aircraft still tracked.
	for name, set := range t.relayed {
		for addr := range set {
			if _, ok := t.aircraft[addr]; !ok {
				delete(set, addr)
			}
		}
		if r, ok := t.receivers[name]; ok {
			r.Relayed = len(set)
		}
		if len(set) == 0 {
			delete(t.relayed, name)
		}
	}

	return removed
}

// Stats returns statistics about tracked data.
type Stats struct {
	Aircraft  int `json:"aircraft"`
	Receivers int `json:"receivers"`
}

func (t *Tracker) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Stats{Aircraft: len(t.aircraft), Receivers: len(t.receivers)}
}
