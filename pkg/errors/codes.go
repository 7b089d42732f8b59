package errors

import "net/http"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Sentinel codes outside the catalogue.
const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeMessageQueue       ErrorCode = "COMMON_017"
)

// Registry (ClinicalTrials.gov) Error Codes
const (
	ErrCodeRegistryUnavailable ErrorCode = "REG_001"
	ErrCodeRegistryRateLimited ErrorCode = "REG_002"
	ErrCodeRegistryMalformed   ErrorCode = "REG_003"
)

// Reference Corpus Error Codes
const (
	ErrCodeCorpusNotLoaded    ErrorCode = "CORPUS_001"
	ErrCodeCohortTooSmall     ErrorCode = "CORPUS_002"
	ErrCodeCorpusDecodeFailed ErrorCode = "CORPUS_003"
	ErrCodeCollectionRunning  ErrorCode = "CORPUS_004"
	ErrCodeCorpusEmpty        ErrorCode = "CORPUS_005"
)

// Artifact Store Error Codes
const (
	ErrCodeArtifactWrite    ErrorCode = "ART_001"
	ErrCodeArtifactRead     ErrorCode = "ART_002"
	ErrCodeArtifactNotFound ErrorCode = "ART_003"
)

// Document Error Codes
const (
	ErrCodeDocumentUnreadable ErrorCode = "DOC_001"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeMessageQueue:       http.StatusInternalServerError,

	ErrCodeRegistryUnavailable: http.StatusBadGateway,
	ErrCodeRegistryRateLimited: http.StatusTooManyRequests,
	ErrCodeRegistryMalformed:   http.StatusBadGateway,

	ErrCodeCorpusNotLoaded:    http.StatusServiceUnavailable,
	ErrCodeCohortTooSmall:     http.StatusNotFound,
	ErrCodeCorpusDecodeFailed: http.StatusInternalServerError,
	ErrCodeCollectionRunning:  http.StatusConflict,
	ErrCodeCorpusEmpty:        http.StatusBadGateway,

	ErrCodeArtifactWrite:    http.StatusInternalServerError,
	ErrCodeArtifactRead:     http.StatusInternalServerError,
	ErrCodeArtifactNotFound: http.StatusNotFound,

	ErrCodeDocumentUnreadable: http.StatusBadRequest,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeCacheError:         "cache error",
	ErrCodeMessageQueue:       "message queue error",

	ErrCodeRegistryUnavailable: "registry unavailable",
	ErrCodeRegistryRateLimited: "registry rate limited",
	ErrCodeRegistryMalformed:   "registry response malformed",

	ErrCodeCorpusNotLoaded:    "reference corpus not loaded",
	ErrCodeCohortTooSmall:     "benchmark cohort below minimum size",
	ErrCodeCorpusDecodeFailed: "reference corpus could not be decoded",
	ErrCodeCollectionRunning:  "a collection run is already in progress",
	ErrCodeCorpusEmpty:        "collection produced no protocols",

	ErrCodeArtifactWrite:    "artifact write failed",
	ErrCodeArtifactRead:     "artifact read failed",
	ErrCodeArtifactNotFound: "artifact not found",

	ErrCodeDocumentUnreadable: "document unreadable",
}

// HTTPStatusOf returns the HTTP status for code, defaulting to 500.
func HTTPStatusOf(code ErrorCode) int {
	if s, ok := ErrorCodeHTTPStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// DefaultMessage returns the catalogue message for code, or "unknown error".
func DefaultMessage(code ErrorCode) string {
	if m, ok := ErrorCodeMessage[code]; ok {
		return m
	}
	return "unknown error"
}
