package framing

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

type flusher interface {
	Flush()
}

// Writer emits frames onto one job's output and enforces the terminal rules:
// nothing follows an error frame, and only the complete progress frame
// follows the payload frame.
type Writer struct {
	mu          sync.Mutex
	w           io.Writer
	closed      bool
	sentPayload bool
	frames      int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (fw *Writer) write(status byte, payload []byte) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.closed {
		return ErrStreamClosed
	}

	if _, err := fw.w.Write(Encode(status, payload)); err != nil {
		// The transport is gone; do not try again.
		fw.closed = true
		return fmt.Errorf("framing: write frame: %w", err)
	}
	fw.frames++

	if f, ok := fw.w.(flusher); ok {
		f.Flush()
	}

	return nil
}

// Progress emits a status-1 frame.
func (fw *Writer) Progress(stage, message, taskID string) error {
	b, err := json.Marshal(Progress{Stage: stage, TaskID: taskID, Message: message})
	if err != nil {
		return err
	}

	fw.mu.Lock()
	sentPayload := fw.sentPayload
	fw.mu.Unlock()

	if sentPayload {
		return fw.complete(b)
	}

	return fw.write(StatusProgress, b)
}

// complete writes the single progress frame allowed after the payload and
// closes the stream.
func (fw *Writer) complete(b []byte) error {
	if err := fw.write(StatusProgress, b); err != nil {
		return err
	}

	fw.mu.Lock()
	fw.closed = true
	fw.mu.Unlock()

	return nil
}

// Payload emits the status-0 result frame. It may be sent once.
func (fw *Writer) Payload(b []byte) error {
	fw.mu.Lock()
	if fw.sentPayload {
		fw.mu.Unlock()
		return ErrStreamClosed
	}
	fw.mu.Unlock()

	if err := fw.write(StatusPayload, b); err != nil {
		return err
	}

	fw.mu.Lock()
	fw.sentPayload = true
	fw.mu.Unlock()

	return nil
}

// Error emits the terminal status-2 frame and closes the stream.
func (fw *Writer) Error(stage, message string) error {
	b, err := json.Marshal(Failure{Error: message, Stage: stage})
	if err != nil {
		return err
	}

	fw.mu.Lock()
	if fw.sentPayload {
		fw.mu.Unlock()
		return ErrStreamClosed
	}
	fw.mu.Unlock()

	werr := fw.write(StatusError, b)

	fw.mu.Lock()
	fw.closed = true
	fw.mu.Unlock()

	return werr
}

// Closed reports whether a terminal frame has been written.
func (fw *Writer) Closed() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	return fw.closed
}

// Count returns the number of frames written so far.
func (fw *Writer) Count() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	return fw.frames
}
