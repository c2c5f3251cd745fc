package droneid

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/alphafox02/antsdr-dji-droneid/errors"
	"github.com/alphafox02/antsdr-dji-droneid/types"
)

// Frame header: 2-byte marker, 1-byte package type, 2-byte little-endian
// total length including the header. Only telemetry frames (0x01) carry a
// decodable record.
const (
	frameHeaderSize      = 5
	PackageTypeTelemetry = 0x01

	// recordSize is the fixed telemetry payload length. Shorter payloads
	// never yield partial records.
	recordSize = 227
)

// Payload field offsets, all little-endian, no padding. Byte 128 is a
// device-subtype flag consumed but not forwarded.
const (
	offSerial    = 0
	offDevice    = 64
	offPilotLat  = 129
	offPilotLon  = 137
	offDroneLat  = 145
	offDroneLon  = 153
	offHeightAGL = 161
	offGeoAlt    = 169
	offHomeLat   = 177
	offHomeLon   = 185
	offFrequency = 193
	offVelEast   = 201
	offVelNorth  = 209
	offVelUp     = 217
	offRSSI      = 225
)

// ParseFrame splits a raw frame into its package type and payload segment.
// The payload is the declared length minus the header; trailing bytes past
// the declared length are ignored.
func ParseFrame(frame []byte) (byte, []byte, error) {
	if len(frame) < frameHeaderSize {
		return 0, nil, errors.WrapInvalid(
			fmt.Errorf("%w: frame shorter than header (%d bytes)", errors.ErrFrameParse, len(frame)),
			"decoder", "ParseFrame", "header read")
	}

	total := int(binary.LittleEndian.Uint16(frame[3:5]))
	if total < frameHeaderSize || total > len(frame) {
		return 0, nil, errors.WrapInvalid(
			fmt.Errorf("%w: declared length %d outside frame of %d bytes", errors.ErrFrameParse, total, len(frame)),
			"decoder", "ParseFrame", "length validation")
	}

	return frame[2], frame[frameHeaderSize:total], nil
}

// DecodeRecord parses a package-type 0x01 payload into a telemetry record.
// The record is a raw mirror of the wire bytes: no validity judgement is
// applied here, even for physically nonsensical values. Malformed text
// bytes are replaced with U+FFFD rather than dropping the record.
func DecodeRecord(payload []byte) (types.TelemetryRecord, error) {
	if len(payload) < recordSize {
		return types.TelemetryRecord{}, errors.WrapInvalid(
			fmt.Errorf("%w: payload %d bytes, need %d", errors.ErrRecordDecode, len(payload), recordSize),
			"decoder", "DecodeRecord", "length validation")
	}

	return types.TelemetryRecord{
		SerialNumber:     decodeText(payload[offSerial : offSerial+64]),
		DeviceType:       decodeText(payload[offDevice : offDevice+64]),
		PilotLat:         decodeDouble(payload, offPilotLat),
		PilotLon:         decodeDouble(payload, offPilotLon),
		DroneLat:         decodeDouble(payload, offDroneLat),
		DroneLon:         decodeDouble(payload, offDroneLon),
		HeightAGL:        decodeDouble(payload, offHeightAGL),
		GeodeticAltitude: decodeDouble(payload, offGeoAlt),
		HomeLat:          decodeDouble(payload, offHomeLat),
		HomeLon:          decodeDouble(payload, offHomeLon),
		Frequency:        decodeDouble(payload, offFrequency),
		VelocityEast:     decodeDouble(payload, offVelEast),
		VelocityNorth:    decodeDouble(payload, offVelNorth),
		VelocityUp:       decodeDouble(payload, offVelUp),
		SignalStrength:   int16(binary.LittleEndian.Uint16(payload[offRSSI : offRSSI+2])),
	}, nil
}

// decodeText trims NUL padding and substitutes U+FFFD for invalid UTF-8 so
// bad text encoding never loses a record.
func decodeText(raw []byte) string {
	s := strings.TrimRight(string(raw), "\x00")
	return strings.ToValidUTF8(s, "�")
}

func decodeDouble(payload []byte, offset int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(payload[offset : offset+8]))
}
