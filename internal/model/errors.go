package model

import "errors"

// Failure kinds. Callers wrap them with context and test with errors.Is.
// None of them aborts a batch: the affected user is simply skipped.
var (
	// ErrParse marks missing or malformed profile text.
	ErrParse = errors.New("parse failure")
	// ErrFetch marks a transport or HTTP status failure.
	ErrFetch = errors.New("fetch failure")
	// ErrStorage marks a durable cache read/write failure.
	ErrStorage = errors.New("storage failure")
)
