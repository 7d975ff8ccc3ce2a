package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound         = errors.New("job not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrQueueFull        = errors.New("queue is full")
	ErrGenerationFailed = errors.New("generation failed")
)
