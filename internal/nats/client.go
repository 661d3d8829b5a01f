// Package nats carries raw feed lines in and decoded beacons out over NATS.
package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"ogn_parser/internal/aprs"
	"ogn_parser/internal/ogn"
)

// Default subjects.
const (
	DefaultRawSubject   = "ogn.raw"
	DefaultBeaconPrefix = "ogn.beacons"
)

// Client publishes and subscribes on a single NATS connection.
type Client struct {
	conn   *nats.Conn
	codec  Codec
	prefix string
}

// New connects to the NATS server at url. Beacons are published under prefix
// with the given codec.
func New(url string, codec Codec, prefix string) (*Client, error) {
	if url == "" {
		return nil, errors.New("connect to nats: empty url")
	}
	nc, err := nats.Connect(url,
		nats.Name("ogn_parser"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return NewWithConn(nc, codec, prefix), nil
}

// NewWithConn wraps an existing connection.
func NewWithConn(nc *nats.Conn, codec Codec, prefix string) *Client {
	if codec == nil {
		codec = JSONCodec{}
	}
	if prefix == "" {
		prefix = DefaultBeaconPrefix
	}
	return &Client{conn: nc, codec: codec, prefix: prefix}
}

// Codec returns the beacon codec.
func (c *Client) Codec() Codec { return c.codec }

// BeaconSubject returns the subject a beacon is published on:
// <prefix>.aircraft, <prefix>.receiver or <prefix>.status.
func BeaconSubject(prefix string, b ogn.Beacon) string {
	switch b.Type() {
	case ogn.TypeAircraft:
		return prefix + ".aircraft"
	case ogn.TypeReceiverStatus:
		return prefix + ".status"
	default:
		return prefix + ".receiver"
	}
}

// PublishBeacon encodes and publishes a decoded beacon.
func (c *Client) PublishBeacon(b ogn.Beacon) error {
	data, err := c.codec.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode beacon: %w", err)
	}
	if err := c.conn.Publish(BeaconSubject(c.prefix, b), data); err != nil {
		return fmt.Errorf("publish beacon: %w", err)
	}
	return nil
}

// PublishRaw publishes a raw feed line wrapped in a JSON envelope.
func (c *Client) PublishRaw(subject string, env aprs.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish raw line: %w", err)
	}
	return nil
}

// SubscribeRaw delivers raw lines published on subject. Message bodies may be
// an envelope or a bare line.
func (c *Client) SubscribeRaw(subject string, handler func(aprs.Envelope)) (*nats.Subscription, error) {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(aprs.ParseEnvelope(msg.Data, time.Now()))
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}

// Flush waits for the server to process all published messages.
func (c *Client) Flush() error {
	return c.conn.Flush()
}

// Close flushes pending publishes and closes the connection.
func (c *Client) Close() {
	if c.conn != nil {
		_ = c.conn.FlushTimeout(2 * time.Second)
		c.conn.Close()
	}
}
