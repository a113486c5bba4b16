package errors

// ErrorCode identifies an application error condition in API responses
type ErrorCode int

const (
	ErrorCode_UNKNOWN ErrorCode = iota
	ErrorCode_INTERNAL
	ErrorCode_INVALID_ARGUMENT
	ErrorCode_NOT_FOUND
	ErrorCode_ALREADY_EXISTS
	ErrorCode_PERMISSION_DENIED
	ErrorCode_UNAUTHENTICATED
	ErrorCode_FORBIDDEN

	// Auth
	ErrorCode_AUTH_INVALID_TOKEN
	ErrorCode_AUTH_TOKEN_EXPIRED

	// Call processing
	ErrorCode_CALL_NOT_FOUND
	ErrorCode_CALL_DUPLICATE_UPLOAD
	ErrorCode_CALL_INVALID_STATE

	// Crypto
	ErrorCode_CRYPTO_FAILED
	ErrorCode_CRYPTO_INVALID_ENVELOPE

	// AI processing
	ErrorCode_AI_TRANSCRIPTION_FAILED
	ErrorCode_AI_MASKING_EXHAUSTED
	ErrorCode_AI_ANALYSIS_FAILED
	ErrorCode_AI_QUOTA_EXCEEDED
	ErrorCode_AI_SERVICE_OVERLOADED

	// Integrations
	ErrorCode_STORAGE_FAILED
	ErrorCode_CACHE_FAILED
	ErrorCode_DB_QUERY_FAILED

	ErrorCode_HTTP_OK
)

var codeNames = map[ErrorCode]string{
	ErrorCode_UNKNOWN:                 "UNKNOWN",
	ErrorCode_INTERNAL:                "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:        "INVALID_ARGUMENT",
	ErrorCode_NOT_FOUND:               "NOT_FOUND",
	ErrorCode_ALREADY_EXISTS:          "ALREADY_EXISTS",
	ErrorCode_PERMISSION_DENIED:       "PERMISSION_DENIED",
	ErrorCode_UNAUTHENTICATED:         "UNAUTHENTICATED",
	ErrorCode_FORBIDDEN:               "FORBIDDEN",
	ErrorCode_AUTH_INVALID_TOKEN:      "AUTH_INVALID_TOKEN",
	ErrorCode_AUTH_TOKEN_EXPIRED:      "AUTH_TOKEN_EXPIRED",
	ErrorCode_CALL_NOT_FOUND:          "CALL_NOT_FOUND",
	ErrorCode_CALL_DUPLICATE_UPLOAD:   "CALL_DUPLICATE_UPLOAD",
	ErrorCode_CALL_INVALID_STATE:      "CALL_INVALID_STATE",
	ErrorCode_CRYPTO_FAILED:           "CRYPTO_FAILED",
	ErrorCode_CRYPTO_INVALID_ENVELOPE: "CRYPTO_INVALID_ENVELOPE",
	ErrorCode_AI_TRANSCRIPTION_FAILED: "AI_TRANSCRIPTION_FAILED",
	ErrorCode_AI_MASKING_EXHAUSTED:    "AI_MASKING_EXHAUSTED",
	ErrorCode_AI_ANALYSIS_FAILED:      "AI_ANALYSIS_FAILED",
	ErrorCode_AI_QUOTA_EXCEEDED:       "AI_QUOTA_EXCEEDED",
	ErrorCode_AI_SERVICE_OVERLOADED:   "AI_SERVICE_OVERLOADED",
	ErrorCode_STORAGE_FAILED:          "STORAGE_FAILED",
	ErrorCode_CACHE_FAILED:            "CACHE_FAILED",
	ErrorCode_DB_QUERY_FAILED:         "DB_QUERY_FAILED",
	ErrorCode_HTTP_OK:                 "OK",
}

// String returns the symbolic name of the error code
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}
