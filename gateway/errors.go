package gateway

import "errors"

var (
	// ErrNilGenerator is returned when a gateway is constructed without a generator.
	ErrNilGenerator = errors.New("generator is required")

	// ErrInvalidMaxConcurrent is returned when the concurrency limit is not positive.
	ErrInvalidMaxConcurrent = errors.New("max concurrent requests must be positive")

	// ErrInvalidRequestRate is returned when the per-minute request cap is not positive.
	ErrInvalidRequestRate = errors.New("requests per minute must be positive")

	// ErrInvalidTimeout is returned when the per-request timeout is not positive.
	ErrInvalidTimeout = errors.New("request timeout must be positive")
)
