package types

import "errors"

// ARCHITECTURAL DISCOVERY: Payload errors never leave the router; they only
// decide whether an inbound frame is dropped
var (
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrInvalidName      = errors.New("name must be 1-100 characters")
	ErrInvalidQuestion  = errors.New("question must be 1-1000 characters")
	ErrInvalidOptions   = errors.New("poll needs 1-26 options of at most 200 characters")
	ErrInvalidDuration  = errors.New("duration must be at most 86400 seconds")
	ErrInvalidPollID    = errors.New("poll id must be positive")
	ErrInvalidAnswer    = errors.New("answer must be 1-200 characters")
	ErrInvalidStudentID = errors.New("student id is required")
)
