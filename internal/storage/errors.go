package storage

import "errors"

var (
	ErrNoCollection      = errors.New("collection not initialized")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
