package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these standard errors so
// that callers can branch with errors.Is without knowing the adapter.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Provider Errors
	ErrNotFound            = errors.New("instrument not found at the data source")
	ErrSourceUnavailable   = errors.New("data source is unavailable")
	ErrRateLimited         = errors.New("data source rate limit exceeded")
	ErrParseFailure        = errors.New("expected fields missing from source response")
	ErrHistoryNotSupported = errors.New("historical data not supported by this source")
	ErrInvalidSource       = errors.New("unknown data source name")

	// Derivation Errors
	ErrInsufficientData = errors.New("not enough price history for the requested computation")

	// Database Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrUpdateFailed = errors.New("database update failed")
)
