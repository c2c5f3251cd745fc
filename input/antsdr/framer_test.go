package antsdr

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphafox02/antsdr-dji-droneid/errors"
)

// buildFrame assembles a frame with the given package type and payload.
func buildFrame(packageType byte, payload []byte) []byte {
	frame := make([]byte, HeaderSize+len(payload))
	frame[0] = 0x5A
	frame[1] = 0xA5
	frame[2] = packageType
	binary.LittleEndian.PutUint16(frame[3:5], uint16(HeaderSize+len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame
}

func TestFramerSingleFrame(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 227)
	want := buildFrame(PackageTypeTelemetry, payload)

	f := NewFramer(bytes.NewReader(want))

	got, err := f.Next()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = f.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFramerMultipleFrames(t *testing.T) {
	first := buildFrame(PackageTypeTelemetry, []byte("first payload"))
	second := buildFrame(0x02, []byte("second"))
	third := buildFrame(PackageTypeTelemetry, nil) // header only

	var stream bytes.Buffer
	stream.Write(first)
	stream.Write(second)
	stream.Write(third)

	f := NewFramer(&stream)

	got, err := f.Next()
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = f.Next()
	require.NoError(t, err)
	assert.Equal(t, second, got)

	got, err = f.Next()
	require.NoError(t, err)
	assert.Equal(t, third, got)

	_, err = f.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFramerEmptyStream(t *testing.T) {
	f := NewFramer(bytes.NewReader(nil))

	_, err := f.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFramerPartialHeader(t *testing.T) {
	// Stream dies after three header bytes.
	f := NewFramer(bytes.NewReader([]byte{0x5A, 0xA5, 0x01}))

	_, err := f.Next()
	require.Error(t, err)
	assert.True(t, errors.IsFrameParse(err))
}

func TestFramerPartialPayload(t *testing.T) {
	full := buildFrame(PackageTypeTelemetry, bytes.Repeat([]byte{0x01}, 100))
	truncated := full[:HeaderSize+40]

	f := NewFramer(bytes.NewReader(truncated))

	_, err := f.Next()
	require.Error(t, err)
	assert.True(t, errors.IsFrameParse(err))
}

func TestFramerDeclaredLengthTooShort(t *testing.T) {
	header := []byte{0x5A, 0xA5, 0x01, 0x00, 0x00} // length 0 < header size
	f := NewFramer(bytes.NewReader(header))

	_, err := f.Next()
	require.Error(t, err)
	assert.True(t, errors.IsFrameParse(err))
}

func TestFramerSplitReads(t *testing.T) {
	// Frames arrive in arbitrary chunk sizes; the framer must reassemble.
	frame := buildFrame(PackageTypeTelemetry, bytes.Repeat([]byte{0xCD}, 50))

	f := NewFramer(iotest.OneByteReader(bytes.NewReader(frame)))

	got, err := f.Next()
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}
