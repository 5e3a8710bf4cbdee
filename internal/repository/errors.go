package repository

import "errors"

// ErrPersistence wraps every failure to read from or write to the store.
var ErrPersistence = errors.New("persistence failure")
