package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ogn_parser/internal/ogn"
	"ogn_parser/internal/storage"
)

type memRedis struct {
	data   map[string][]byte
	ttl    map[string]time.Duration
	getErr error
	closed bool
}

func newMemRedis() *memRedis {
	return &memRedis{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (m *memRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *memRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.data[key] = v
	case string:
		m.data[key] = []byte(v)
	}
	m.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *memRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *memRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *memRedis) Close() error {
	m.closed = true
	return nil
}

func TestAircraftRoundTrip(t *testing.T) {
	mem := newMemRedis()
	c := NewWithClient(mem)
	ctx := context.Background()

	s := &storage.AircraftSighting{
		Address:      "DDA5BA",
		SourceID:     "FLRDDA5BA",
		AircraftType: "GLIDER",
		LogFileID:    "FLRDDA5BA",
		Latitude:     44.5,
		SeenAt:       time.Date(2015, 4, 2, 16, 0, 48, 0, time.UTC),
	}
	require.NoError(t, c.StoreAircraft(ctx, s))
	assert.Equal(t, AircraftTTL, mem.ttl["aircraft:DDA5BA"])

	got, err := c.GetAircraft(ctx, "dda5ba")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "FLRDDA5BA", got.SourceID)
	assert.True(t, got.SeenAt.Equal(s.SeenAt))

	require.NoError(t, c.DeleteAircraft(ctx, "DDA5BA"))
	got, err = c.GetAircraft(ctx, "DDA5BA")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReceiverByType(t *testing.T) {
	mem := newMemRedis()
	c := NewWithClient(mem)
	ctx := context.Background()

	var status ogn.ReceiverBeacon
	status.ID = "Albertv"
	status.ReceiverBeaconType = ogn.ReceiverStatus
	status.Version = "0.2.2"
	require.NoError(t, c.StoreReceiver(ctx, status))
	assert.Equal(t, ReceiverTTL, mem.ttl["receiver:Albertv:receiver_status"])

	got, err := c.GetReceiver(ctx, "Albertv", ogn.TypeReceiverStatus)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "0.2.2", got.Version)
	assert.Equal(t, ogn.ReceiverStatus, got.ReceiverBeaconType)

	pos, err := c.GetReceiver(ctx, "Albertv", ogn.TypeReceiverPosition)
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestGetErrors(t *testing.T) {
	mem := newMemRedis()
	c := NewWithClient(mem)
	ctx := context.Background()

	mem.data["aircraft:BAD"] = []byte("{not json")
	_, err := c.GetAircraft(ctx, "BAD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal sighting")

	mem.getErr = errors.New("connection reset")
	_, err = c.GetAircraft(ctx, "DDA5BA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestClose(t *testing.T) {
	mem := newMemRedis()
	require.NoError(t, NewWithClient(mem).Close())
	assert.True(t, mem.closed)
}

func TestNewUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	c, err := New(ctx, "127.0.0.1:1", "")
	assert.Error(t, err)
	assert.Nil(t, c)
}
