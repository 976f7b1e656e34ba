package framing

import (
	"bufio"
	"errors"
	"io"
)

// Reader decodes frames in emission order and stops after the terminal one.
type Reader struct {
	r          *bufio.Reader
	maxPayload int64
	done       bool
	sawPayload bool
}

// NewReader decodes frames from r. Frames longer than maxPayload bytes fail
// with ErrPayloadTooLong; zero or less means no cap beyond the wire limit.
func NewReader(r io.Reader, maxPayload int64) *Reader {
	return &Reader{r: bufio.NewReader(r), maxPayload: maxPayload}
}

// Next returns the next frame, or io.EOF once the stream has ended cleanly.
// A stream that stops before its terminal frame yields io.ErrUnexpectedEOF.
func (fr *Reader) Next() (Frame, error) {
	if fr.done {
		return Frame{}, io.EOF
	}

	f, err := DecodeLimit(fr.r, fr.maxPayload)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.ErrUnexpectedEOF
		}
		fr.done = true
		return Frame{}, err
	}

	switch {
	case f.Status == StatusError:
		fr.done = true
	case f.Status == StatusPayload:
		fr.sawPayload = true
	case fr.sawPayload:
		// complete frame after the payload
		fr.done = true
	}

	return f, nil
}

// Each calls fn for every frame until the stream ends or fn returns an error.
func (fr *Reader) Each(fn func(Frame) error) error {
	for {
		f, err := fr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
}
