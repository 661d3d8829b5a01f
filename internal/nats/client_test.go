package nats

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	natscontainer "github.com/testcontainers/testcontainers-go/modules/nats"

	"ogn_parser/internal/aprs"
	"ogn_parser/internal/ogn"
)

func testAircraft() ogn.AircraftBeacon {
	var b ogn.AircraftBeacon
	b.ID = "FLRDDA5BA"
	b.Timestamp = time.Date(2015, 4, 2, 16, 0, 48, 0, time.UTC)
	b.Lat, b.Lon, b.Alt = 44.5046, 5.6316, 1082.7
	b.Address = "DDA5BA"
	b.AddressType = ogn.AddressFLARM
	b.AircraftType = ogn.AircraftGlider
	b.ClimbRate = -0.5
	return b
}

func TestCodecByName(t *testing.T) {
	for name, want := range map[string]string{"": "json", "json": "json", "JSON": "json", "msgpack": "msgpack"} {
		c, err := CodecByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, c.Name())
	}

	_, err := CodecByName("xml")
	assert.Error(t, err)
}

func TestCodecsShareFieldNames(t *testing.T) {
	for _, codec := range []Codec{JSONCodec{}, MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Marshal(testAircraft())
			require.NoError(t, err)

			var fields map[string]any
			require.NoError(t, codec.Unmarshal(data, &fields))
			assert.Equal(t, "FLRDDA5BA", fields["id"])
			assert.Equal(t, "DDA5BA", fields["address"])
			assert.Contains(t, fields, "climb_rate")
		})
	}
}

func TestBeaconSubject(t *testing.T) {
	var pos, status ogn.ReceiverBeacon
	status.ReceiverBeaconType = ogn.ReceiverStatus

	assert.Equal(t, "ogn.beacons.aircraft", BeaconSubject(DefaultBeaconPrefix, testAircraft()))
	assert.Equal(t, "ogn.beacons.receiver", BeaconSubject(DefaultBeaconPrefix, pos))
	assert.Equal(t, "ogn.beacons.status", BeaconSubject(DefaultBeaconPrefix, status))
}

func TestNewEmptyURL(t *testing.T) {
	c, err := New("", JSONCodec{}, "")
	assert.Error(t, err)
	assert.Nil(t, c)
}

func TestCloseNilConn(t *testing.T) {
	c := &Client{}
	assert.NotPanics(t, c.Close)
}

func startNATS(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	container, err := natscontainer.Run(ctx, "nats:2.10-alpine")
	if err != nil {
		t.Skipf("nats container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate nats container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return url
}

func TestRawAndBeaconRoundTrip(t *testing.T) {
	url := startNATS(t)

	client, err := New(url, MsgpackCodec{}, "test.beacons")
	require.NoError(t, err)
	defer client.Close()

	lines := make(chan aprs.Envelope, 2)
	_, err = client.SubscribeRaw("test.raw", func(env aprs.Envelope) { lines <- env })
	require.NoError(t, err)

	beacons := make(chan []byte, 1)
	_, err = client.conn.Subscribe("test.beacons.>", func(msg *nats.Msg) { beacons <- msg.Data })
	require.NoError(t, err)
	require.NoError(t, client.Flush())

	line := "FLRDDA5BA>APRS,qAS,LFNX:/160048h4430.28N/00537.90E'342/049/A=005524 id0ADDA5BA -454fpm -1.1rot 8.8dB 0e +51.2kHz gps4x5"
	require.NoError(t, client.PublishRaw("test.raw", aprs.Envelope{Line: line}))
	require.NoError(t, client.conn.Publish("test.raw", []byte(line)))
	require.NoError(t, client.PublishBeacon(testAircraft()))
	require.NoError(t, client.Flush())

	for i := 0; i < 2; i++ {
		select {
		case env := <-lines:
			assert.Equal(t, line, env.Line)
			assert.False(t, env.ReceivedAt.IsZero())
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for raw line")
		}
	}

	select {
	case data := <-beacons:
		var fields map[string]any
		require.NoError(t, MsgpackCodec{}.Unmarshal(data, &fields))
		assert.Equal(t, "FLRDDA5BA", fields["id"])
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for beacon")
	}
}
