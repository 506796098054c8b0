package storage

import "errors"

// Shared sentinel errors. Both the event log and the price history are
// append-only: a duplicate key is a write of history that already exists,
// never an update.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key
	// already exists. On-ledger history never rewrites, so there is no
	// upsert path.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
