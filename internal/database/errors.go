package database

import "errors"

// Archive store errors
var (
	ErrStoreClosed  = errors.New("archive store is closed")
	ErrPollNotFound = errors.New("poll not found in archive")
)
