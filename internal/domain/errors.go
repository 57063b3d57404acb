package domain

import "errors"

var (
	// ErrValidation marks request or content validation failures.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks lookups that matched no record.
	ErrNotFound = errors.New("not found")

	// ErrBatchRunning is returned when a batch start is requested while a
	// run is already in progress.
	ErrBatchRunning = errors.New("batch already processing")

	// ErrNoMappings is returned when the curriculum store holds no lesson
	// mapping files.
	ErrNoMappings = errors.New("no lesson mappings found")
)
