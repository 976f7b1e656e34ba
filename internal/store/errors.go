package store

import "errors"

var (
	ErrNotFound = errors.New("store: job not found")
	ErrClosed   = errors.New("store: job client is closed")
)
