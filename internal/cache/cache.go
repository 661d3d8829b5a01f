// Package cache keeps the latest aircraft sightings and receiver beacons in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ogn_parser/internal/ogn"
	"ogn_parser/internal/storage"
)

// Default expirations.
const (
	AircraftTTL = time.Hour
	ReceiverTTL = 24 * time.Hour
)

// RedisClientInterface defines the Redis operations used by Client.
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Client stores beacon state in Redis.
type Client struct {
	client      RedisClientInterface
	aircraftTTL time.Duration
	receiverTTL time.Duration
}

// New connects to Redis at addr.
func New(ctx context.Context, addr, password string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client RedisClientInterface) *Client {
	return &Client{client: client, aircraftTTL: AircraftTTL, receiverTTL: ReceiverTTL}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func aircraftKey(address string) string {
	return "aircraft:" + strings.ToUpper(address)
}

func receiverKey(name, beaconType string) string {
	return "receiver:" + name + ":" + beaconType
}

// StoreAircraft stores the latest sighting of an aircraft.
func (c *Client) StoreAircraft(ctx context.Context, s *storage.AircraftSighting) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal sighting: %w", err)
	}
	return c.client.Set(ctx, aircraftKey(s.Address), data, c.aircraftTTL).Err()
}

// GetAircraft returns the latest sighting of an aircraft, or nil if none is cached.
func (c *Client) GetAircraft(ctx context.Context, address string) (*storage.AircraftSighting, error) {
	var s storage.AircraftSighting
	found, err := c.getData(ctx, aircraftKey(address), &s, "sighting")
	if err != nil || !found {
		return nil, err
	}
	return &s, nil
}

// DeleteAircraft removes a cached sighting.
func (c *Client) DeleteAircraft(ctx context.Context, address string) error {
	return c.client.Del(ctx, aircraftKey(address)).Err()
}

// StoreReceiver stores the latest position or status beacon of a receiver.
func (c *Client) StoreReceiver(ctx context.Context, b ogn.ReceiverBeacon) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal receiver beacon: %w", err)
	}
	return c.client.Set(ctx, receiverKey(b.ID, b.Type()), data, c.receiverTTL).Err()
}

// GetReceiver returns the latest beacon of the given type (ogn.TypeReceiverPosition
// or ogn.TypeReceiverStatus) for a receiver, or nil if none is cached.
func (c *Client) GetReceiver(ctx context.Context, name, beaconType string) (*ogn.ReceiverBeacon, error) {
	var b ogn.ReceiverBeacon
	found, err := c.getData(ctx, receiverKey(name, beaconType), &b, "receiver beacon")
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

func (c *Client) getData(ctx context.Context, key string, target interface{}, dataType string) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", dataType, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", dataType, err)
	}
	return true, nil
}
