// Package framing implements the streamed response wire format:
//
//	status:uint8 || length:uint32 (big-endian) || payload:bytes[length]
//
// Status 0 carries the final binary payload, status 1 a JSON progress
// message and status 2 a JSON terminal error.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	StatusPayload  byte = 0
	StatusProgress byte = 1
	StatusError    byte = 2
)

// HeaderSize is the number of bytes preceding every payload.
const HeaderSize = 1 + 4

var (
	ErrUnknownStatus  = errors.New("framing: unknown frame status")
	ErrPayloadTooLong = errors.New("framing: payload exceeds frame limit")
	ErrStreamClosed   = errors.New("framing: stream already terminated")
)

// Frame is one decoded unit of the stream.
type Frame struct {
	Status  byte
	Payload []byte
}

// Terminal reports whether no further frames may follow this one.
// A payload frame is followed by exactly one complete progress frame, so
// only error frames are terminal on their own.
func (f Frame) Terminal() bool { return f.Status == StatusError }

func validStatus(s byte) bool {
	return s == StatusPayload || s == StatusProgress || s == StatusError
}

// Encode packs one frame. The result is exactly HeaderSize+len(payload) bytes.
func Encode(status byte, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = status
	binary.BigEndian.PutUint32(buf[1:HeaderSize], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// Decode reads one frame from r. io.EOF is returned only when r is exhausted
// exactly on a frame boundary.
func Decode(r io.Reader) (Frame, error) {
	return DecodeLimit(r, math.MaxInt32)
}

// DecodeLimit is Decode with a cap on the payload length. The payload buffer
// grows as bytes arrive.
func DecodeLimit(r io.Reader, maxPayload int64) (Frame, error) {
	var hdr [HeaderSize]byte

	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}

	if !validStatus(hdr[0]) {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnknownStatus, hdr[0])
	}

	n := int64(binary.BigEndian.Uint32(hdr[1:]))
	if maxPayload <= 0 || maxPayload > math.MaxInt32 {
		maxPayload = math.MaxInt32
	}
	if n > maxPayload {
		return Frame{}, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLong, n, maxPayload)
	}

	payload, err := io.ReadAll(io.LimitReader(r, n))
	if err != nil {
		return Frame{}, err
	}
	if int64(len(payload)) < n {
		return Frame{}, io.ErrUnexpectedEOF
	}

	return Frame{Status: hdr[0], Payload: payload}, nil
}
