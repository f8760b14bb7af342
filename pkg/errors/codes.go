package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeTimeout            ErrorCode = "COMMON_004"
	ErrCodeValidation         ErrorCode = "COMMON_005"
	ErrCodeSerialization      ErrorCode = "COMMON_006"
	ErrCodeDatabaseError      ErrorCode = "COMMON_007"
	ErrCodeCacheError         ErrorCode = "COMMON_008"
	ErrCodeExternalService    ErrorCode = "COMMON_009"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_010"
	ErrCodeNotImplemented     ErrorCode = "COMMON_011"
)

// Short aliases used throughout the codebase.
const (
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeNotFound       = ErrCodeNotFound
	CodeTimeout        = ErrCodeTimeout
	CodeUnavailable    = ErrCodeServiceUnavailable
	CodeNotImplemented = ErrCodeNotImplemented
	CodeOK             = ErrorCode("OK")
)

// Merchant Module Error Codes
const (
	ErrCodeMerchantNotFound      ErrorCode = "MERCH_001"
	ErrCodeTradeAreaNotFound     ErrorCode = "MERCH_002"
	ErrCodeMerchantQueryFailed   ErrorCode = "MERCH_003"
	ErrCodeMerchantIDMalformed   ErrorCode = "MERCH_004"
	ErrCodeMerchantStoreOffline  ErrorCode = "MERCH_005"
)

// Metric Module Error Codes
const (
	ErrCodeMetricSourceMissing ErrorCode = "METRIC_001"
	ErrCodeMetricBuildFailed   ErrorCode = "METRIC_002"
)

// Web Search Module Error Codes
const (
	ErrCodeWebProviderFailed   ErrorCode = "WEB_001"
	ErrCodeWebNoProviders      ErrorCode = "WEB_002"
	ErrCodeWebRerankFailed     ErrorCode = "WEB_003"
	ErrCodeWebInvalidQuery     ErrorCode = "WEB_004"
)

// Conversation Module Error Codes
const (
	ErrCodeTurnFailed          ErrorCode = "CONV_001"
	ErrCodeHistoryLoadFailed   ErrorCode = "CONV_002"
	ErrCodeHistorySaveFailed   ErrorCode = "CONV_003"
	ErrCodeRelevanceRejected   ErrorCode = "CONV_004"
	ErrCodeEmptyQuery          ErrorCode = "CONV_005"
	ErrCodeTranscriptExport    ErrorCode = "CONV_006"
)

// LLM / Intelligence Module Error Codes
const (
	ErrCodeLLMRequestFailed    ErrorCode = "LLM_001"
	ErrCodeLLMEmptyResponse    ErrorCode = "LLM_002"
	ErrCodeLLMTimeout          ErrorCode = "LLM_003"
	ErrCodeForecastUnavailable ErrorCode = "FCST_001"
	ErrCodeForecastFailed      ErrorCode = "FCST_002"
)

// httpStatusByCode maps each error code to the HTTP status returned by the
// interfaces layer. Codes not present here fall back to 500.
var httpStatusByCode = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeMerchantNotFound:    http.StatusNotFound,
	ErrCodeTradeAreaNotFound:   http.StatusNotFound,
	ErrCodeMerchantQueryFailed: http.StatusInternalServerError,
	ErrCodeMerchantIDMalformed: http.StatusBadRequest,

	ErrCodeMetricSourceMissing: http.StatusNotFound,
	ErrCodeMetricBuildFailed:   http.StatusInternalServerError,

	ErrCodeWebProviderFailed: http.StatusBadGateway,
	ErrCodeWebNoProviders:    http.StatusServiceUnavailable,
	ErrCodeWebRerankFailed:   http.StatusInternalServerError,
	ErrCodeWebInvalidQuery:   http.StatusBadRequest,

	ErrCodeTurnFailed:        http.StatusInternalServerError,
	ErrCodeHistoryLoadFailed: http.StatusInternalServerError,
	ErrCodeHistorySaveFailed: http.StatusInternalServerError,
	ErrCodeRelevanceRejected: http.StatusUnprocessableEntity,
	ErrCodeEmptyQuery:        http.StatusBadRequest,
	ErrCodeTranscriptExport:  http.StatusInternalServerError,

	ErrCodeLLMRequestFailed:    http.StatusBadGateway,
	ErrCodeLLMEmptyResponse:    http.StatusBadGateway,
	ErrCodeLLMTimeout:          http.StatusGatewayTimeout,
	ErrCodeForecastUnavailable: http.StatusOK,
	ErrCodeForecastFailed:      http.StatusBadGateway,
}

// defaultMessageByCode provides a user-safe message per code, used when an
// AppError carries no message of its own.
var defaultMessageByCode = map[ErrorCode]string{
	ErrCodeInternal:            "internal server error",
	ErrCodeBadRequest:          "invalid request",
	ErrCodeNotFound:            "resource not found",
	ErrCodeTimeout:             "request timed out",
	ErrCodeValidation:          "validation failed",
	ErrCodeDatabaseError:       "database error",
	ErrCodeCacheError:          "cache error",
	ErrCodeExternalService:     "external service error",
	ErrCodeServiceUnavailable:  "service unavailable",
	ErrCodeNotImplemented:      "not implemented",
	ErrCodeMerchantNotFound:    "merchant not found",
	ErrCodeTradeAreaNotFound:   "trade area not found",
	ErrCodeMerchantQueryFailed: "merchant query failed",
	ErrCodeMerchantIDMalformed: "malformed merchant identifier",
	ErrCodeMetricSourceMissing: "metric source data missing",
	ErrCodeMetricBuildFailed:   "metric build failed",
	ErrCodeWebProviderFailed:   "web search provider failed",
	ErrCodeWebNoProviders:      "no web search providers configured",
	ErrCodeTurnFailed:          "conversation turn failed",
	ErrCodeHistoryLoadFailed:   "failed to load conversation history",
	ErrCodeHistorySaveFailed:   "failed to save conversation history",
	ErrCodeRelevanceRejected:   "generated response failed relevance checks",
	ErrCodeEmptyQuery:          "query must not be empty",
	ErrCodeLLMRequestFailed:    "language model request failed",
	ErrCodeForecastUnavailable: "prediction unavailable for this merchant",
}

// HTTPStatusForCode returns the HTTP status code for the given error code,
// defaulting to 500 for unknown codes.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := httpStatusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the user-safe default message for a code.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := defaultMessageByCode[code]; ok {
		return msg
	}
	return "unexpected error"
}

// ModuleForCode extracts the module prefix of a code ("MERCH_001" → "MERCH").
func ModuleForCode(code ErrorCode) string {
	s := code.String()
	if i := strings.IndexByte(s, '_'); i > 0 {
		return s[:i]
	}
	return s
}
