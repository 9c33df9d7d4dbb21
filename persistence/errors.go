package persistence

import "errors"

// Sentinel errors for storage operations.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrLoadFailed  = errors.New("load failed")
	ErrSaveFailed  = errors.New("save failed")
	ErrDecode      = errors.New("decode failed")
)
