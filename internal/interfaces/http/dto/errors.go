package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	ErrCodeValidation  = "ERR_VALIDATION"
	ErrCodeBadRequest  = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
)

// Chat session error codes. These mirror the authentication taxonomy of the
// external chat platforms: 2FA and checkpoints are authentication problems
// the end user must act on, not server faults.
const (
	ErrCodeTwoFactorRequired   = "ERR_TWO_FACTOR_REQUIRED"
	ErrCodeChallengeRequired   = "ERR_CHECKPOINT_CHALLENGE_REQUIRED"
	ErrCodeAuthFailed          = "ERR_AUTH_FAILED"
	ErrCodeSessionExpired      = "ERR_SESSION_EXPIRED"
	ErrCodeManualLoginRequired = "ERR_MANUAL_LOGIN_REQUIRED"
	ErrCodeBridgeDown          = "ERR_BRIDGE_DOWN"
	ErrCodeInvalidWebhookAuth  = "ERR_INVALID_WEBHOOK_AUTH"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeBusinessRule: http.StatusUnprocessableEntity,

	ErrCodeTwoFactorRequired:   http.StatusUnauthorized,
	ErrCodeChallengeRequired:   http.StatusUnauthorized,
	ErrCodeAuthFailed:          http.StatusUnauthorized,
	ErrCodeSessionExpired:      http.StatusUnauthorized,
	ErrCodeManualLoginRequired: http.StatusUnauthorized,
	ErrCodeBridgeDown:          http.StatusServiceUnavailable,
	ErrCodeInvalidWebhookAuth:  http.StatusUnauthorized,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to the standardized codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeBadRequest,
	"INVALID_STATE":        ErrCodeInvalidState,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"FORBIDDEN":            ErrCodeForbidden,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"INVALID_PLATFORM":     ErrCodeBadRequest,
	"INVALID_USERNAME":     ErrCodeBadRequest,
	"INVALID_STATUS":       ErrCodeBadRequest,
	"INVALID_NAME":         ErrCodeBadRequest,
	"INVALID_BUDGET":       ErrCodeBadRequest,
	"INVALID_QR":           ErrCodeBadRequest,
	"INVALID_EVENT":        ErrCodeBadRequest,
	"INVALID_MESSAGE":      ErrCodeBadRequest,
	"INVALID_THREAD":       ErrCodeBadRequest,
}

// NormalizeErrorCode converts a domain error code to the standardized format.
// Codes already in the new format or unknown codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
