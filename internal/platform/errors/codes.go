// Package errors provides structured error handling for the hub cache.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Lookup errors
	CodeNotFound Code = "NOT_FOUND"

	// Persistence errors
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"

	// Upstream provider errors
	CodeProviderError Code = "PROVIDER_ERROR"

	// Key derivation and request validation errors
	CodeInvalidParameters Code = "INVALID_PARAMETERS"
	CodeUnknownKind       Code = "UNKNOWN_KIND"
	CodeInvalidPolicy     Code = "INVALID_POLICY"
)
