package droneid

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphafox02/antsdr-dji-droneid/errors"
	"github.com/alphafox02/antsdr-dji-droneid/types"
)

// encodeRecord builds a reference little-endian 227-byte payload from a
// record.
func encodeRecord(rec types.TelemetryRecord) []byte {
	payload := make([]byte, recordSize)
	copy(payload[offSerial:], rec.SerialNumber)
	copy(payload[offDevice:], rec.DeviceType)

	put := func(offset int, v float64) {
		binary.LittleEndian.PutUint64(payload[offset:offset+8], math.Float64bits(v))
	}
	put(offPilotLat, rec.PilotLat)
	put(offPilotLon, rec.PilotLon)
	put(offDroneLat, rec.DroneLat)
	put(offDroneLon, rec.DroneLon)
	put(offHeightAGL, rec.HeightAGL)
	put(offGeoAlt, rec.GeodeticAltitude)
	put(offHomeLat, rec.HomeLat)
	put(offHomeLon, rec.HomeLon)
	put(offFrequency, rec.Frequency)
	put(offVelEast, rec.VelocityEast)
	put(offVelNorth, rec.VelocityNorth)
	put(offVelUp, rec.VelocityUp)

	binary.LittleEndian.PutUint16(payload[offRSSI:offRSSI+2], uint16(rec.SignalStrength))
	return payload
}

// encodeFrame wraps a payload in a complete frame with header.
func encodeFrame(packageType byte, payload []byte) []byte {
	frame := make([]byte, frameHeaderSize+len(payload))
	frame[0] = 0x5A
	frame[1] = 0xA5
	frame[2] = packageType
	binary.LittleEndian.PutUint16(frame[3:5], uint16(len(frame)))
	copy(frame[frameHeaderSize:], payload)
	return frame
}

func sampleRecord() types.TelemetryRecord {
	return types.TelemetryRecord{
		SerialNumber:     "1581F5FHD228Q00A7888",
		DeviceType:       "DJI Mini 3 Pro",
		PilotLat:         51.5074,
		PilotLon:         -0.1278,
		DroneLat:         51.5080,
		DroneLon:         -0.1290,
		HeightAGL:        42.5,
		GeodeticAltitude: 120.25,
		HomeLat:          51.5071,
		HomeLon:          -0.1275,
		Frequency:        2437.5,
		VelocityEast:     3.0,
		VelocityNorth:    4.0,
		VelocityUp:       1.0,
		SignalStrength:   -71,
	}
}

func TestDecodeRecordRoundTrip(t *testing.T) {
	want := sampleRecord()

	got, err := DecodeRecord(encodeRecord(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeRecordExtremeValues(t *testing.T) {
	// Decode is a raw mirror: nonsensical values survive bit-exact.
	want := types.TelemetryRecord{
		SerialNumber:   "XXXXX",
		DroneLat:       500.0,
		DroneLon:       -3000.0,
		VelocityEast:   math.Inf(1),
		Frequency:      math.MaxFloat64,
		SignalStrength: math.MinInt16,
	}

	got, err := DecodeRecord(encodeRecord(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeRecordShortPayload(t *testing.T) {
	for _, size := range []int{0, 1, 128, 226} {
		_, err := DecodeRecord(make([]byte, size))
		require.Error(t, err, "size %d", size)
		assert.True(t, errors.IsRecordDecode(err), "size %d", size)
	}
}

func TestDecodeRecordTextHandling(t *testing.T) {
	payload := encodeRecord(types.TelemetryRecord{})
	// Serial with trailing NUL padding.
	copy(payload[offSerial:], "ABC123\x00\x00")
	// Device type with an invalid UTF-8 byte mid-string.
	copy(payload[offDevice:], []byte{'D', 'J', 'I', 0xFF, 'X'})

	rec, err := DecodeRecord(payload)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", rec.SerialNumber)
	assert.Equal(t, "DJI�X", rec.DeviceType)
}

func TestDecodeRecordSubtypeByteNotForwarded(t *testing.T) {
	payload := encodeRecord(sampleRecord())
	withFlag := make([]byte, len(payload))
	copy(withFlag, payload)
	withFlag[128] = 0x07

	a, err := DecodeRecord(payload)
	require.NoError(t, err)
	b, err := DecodeRecord(withFlag)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseFrame(t *testing.T) {
	payload := encodeRecord(sampleRecord())
	frame := encodeFrame(PackageTypeTelemetry, payload)

	packageType, got, err := ParseFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, byte(PackageTypeTelemetry), packageType)
	assert.Equal(t, payload, got)
}

func TestParseFrameTrailingBytesIgnored(t *testing.T) {
	payload := []byte("data")
	frame := append(encodeFrame(0x02, payload), 0xEE, 0xEE)

	packageType, got, err := ParseFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), packageType)
	assert.Equal(t, payload, got)
}

func TestParseFrameErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{name: "empty", frame: nil},
		{name: "shorter than header", frame: []byte{0x5A, 0xA5, 0x01}},
		{name: "declared length below header", frame: []byte{0x5A, 0xA5, 0x01, 0x02, 0x00}},
		{name: "declared length beyond frame", frame: []byte{0x5A, 0xA5, 0x01, 0xFF, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseFrame(tt.frame)
			require.Error(t, err)
			assert.True(t, errors.IsFrameParse(err))
		})
	}
}
