package aprs

import (
	"encoding/json"
	"strconv"
	"time"
)

// FlexTime handles JSON timestamps that can be either RFC 3339 strings or
// Unix seconds.
type FlexTime struct {
	time.Time
}

func (f *FlexTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		f.Time = time.Time{}
		return nil
	}

	// Try as number first
	var secs float64
	if err := json.Unmarshal(data, &secs); err == nil {
		whole := int64(secs)
		f.Time = time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			f.Time = time.Time{}
			return nil
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			f.Time = t.UTC()
			return nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			f.Time = time.Unix(n, 0).UTC()
			return nil
		}
	}

	f.Time = time.Time{}
	return nil // Silently ignore unparseable times
}

func (f FlexTime) MarshalJSON() ([]byte, error) {
	if f.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(f.Time.UTC().Format(time.RFC3339Nano))
}

// Envelope is the JSON form in which raw feed lines travel over NATS. Plain
// text messages carry just the line and are wrapped by the subscriber.
type Envelope struct {
	Line       string    `json:"line"`
	ReceivedAt FlexTime  `json:"received_at"`
	Source     *FeedInfo `json:"source,omitempty"`
}

// FeedInfo names the feed that produced a line.
type FeedInfo struct {
	Name   string `json:"name,omitempty"`   // e.g. "aprs.glidernet.org:14580"
	Filter string `json:"filter,omitempty"` // APRS-IS server side filter
}

// ParseEnvelope decodes a NATS message body. Bodies that are not a JSON object
// are taken as a bare line received at fallback.
func ParseEnvelope(data []byte, fallback time.Time) Envelope {
	var env Envelope
	if len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, &env); err == nil && env.Line != "" {
			if env.ReceivedAt.IsZero() {
				env.ReceivedAt.Time = fallback.UTC()
			}
			return env
		}
	}
	return Envelope{Line: string(data), ReceivedAt: FlexTime{fallback.UTC()}}
}
