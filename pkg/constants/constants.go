// Package constants provides shared constants used throughout the ocsge-pv codebase.
// This includes timeouts, limits, file permissions, and other configuration values
// that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to the declarations API
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultConnectTimeout is the timeout for establishing a database connection
	DefaultConnectTimeout = 10 * time.Second

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 30 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants define various limits and capacities
const (
	// MaxRetries is the maximum number of retry attempts for transient failures
	MaxRetries = 3

	// DefaultBatchSize is the number of declarations fetched and written per batch
	DefaultBatchSize = 200

	// MaxBatchSize is the largest accepted batch size
	MaxBatchSize = 5000

	// DefaultPageSize is the page size for paginated API requests
	DefaultPageSize = 100

	// MaxWorkers caps the scoring worker pool regardless of CPU count
	MaxWorkers = 32
)

// Rate limiting constants for the declarations API client
const (
	// DefaultRequestsPerSecond is the sustained request rate against the API
	DefaultRequestsPerSecond = 2

	// DefaultBurstSize is the token bucket burst size for rate limiting
	DefaultBurstSize = 5
)
