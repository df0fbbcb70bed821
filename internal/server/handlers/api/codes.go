package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error

	// Gate errors
	CodeUnauthorized = "E_UNAUTHORIZED" // no session, credentials or default identity
	CodeForbidden    = "E_FORBIDDEN"    // identity may not access the game

	CodeNotFound = "E_NOT_FOUND" // game, file or save does not exist
)
