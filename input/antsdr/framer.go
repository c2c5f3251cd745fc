package antsdr

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/alphafox02/antsdr-dji-droneid/errors"
)

// Frame header layout: 2-byte marker, 1-byte package type, 2-byte
// little-endian total length (header included).
const (
	HeaderSize = 5

	// PackageTypeTelemetry is the only package type the downstream decoder
	// understands; other types are forwarded and skipped there.
	PackageTypeTelemetry = 0x01
)

// Framer segments a continuous byte stream into complete length-prefixed
// frames. It buffers the underlying reader so short reads from the socket
// never split a frame.
type Framer struct {
	r *bufio.Reader
}

// NewFramer wraps the given stream for frame-by-frame reading.
func NewFramer(r io.Reader) *Framer {
	return &Framer{r: bufio.NewReader(r)}
}

// Next blocks until one complete frame is available and returns its raw
// bytes, header included.
//
// A clean end-of-stream (zero bytes before the next header) returns io.EOF
// so the caller can trigger its reconnect policy. A stream that dies
// mid-frame, or a frame whose declared length is smaller than the header,
// returns an error wrapping errors.ErrFrameParse; the caller discards the
// partial frame and keeps reading.
func (f *Framer) Next() ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f.r, header); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: truncated header: %w", errors.ErrFrameParse, err),
			"framer", "Next", "header read")
	}

	total := int(binary.LittleEndian.Uint16(header[3:5]))
	if total < HeaderSize {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: declared length %d shorter than header", errors.ErrFrameParse, total),
			"framer", "Next", "length validation")
	}

	frame := make([]byte, total)
	copy(frame, header)
	if _, err := io.ReadFull(f.r, frame[HeaderSize:]); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: truncated payload (want %d bytes): %w",
				errors.ErrFrameParse, total-HeaderSize, err),
			"framer", "Next", "payload read")
	}

	return frame, nil
}
