package errors

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

// ServerErrorStatusThreshold is the first HTTP status treated as a server error.
const ServerErrorStatusThreshold = 500

// ClassifyStatus determines an ErrorType from an HTTP status and a provider error code.
// Provider codes win over status codes when they are specific.
func ClassifyStatus(statusCode int, errorCode string) ErrorType {
	lowerCode := strings.ToLower(errorCode)
	switch {
	case strings.Contains(lowerCode, "rate") || strings.Contains(lowerCode, "limit"):
		return ErrorTypeRateLimit
	case strings.Contains(lowerCode, "timeout"):
		return ErrorTypeTimeout
	case strings.Contains(lowerCode, "auth") || strings.Contains(lowerCode, "unauthorized"):
		return ErrorTypeAuth
	case strings.Contains(lowerCode, "permission") || strings.Contains(lowerCode, "forbidden"):
		return ErrorTypePermission
	case strings.Contains(lowerCode, "quota"):
		return ErrorTypeQuota
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case http.StatusUnauthorized:
		return ErrorTypeAuth
	case http.StatusForbidden:
		return ErrorTypePermission
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrorTypeTimeout
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrorTypeValidation
	default:
		if statusCode >= ServerErrorStatusThreshold {
			return ErrorTypeProvider
		}
		return ErrorTypeUnknown
	}
}

// Classify maps an arbitrary error from a backend call to an ErrorType.
func Classify(err error) ErrorType {
	if err == nil {
		return ""
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Type
	}
	if errors.Is(err, ErrRateLimitExceeded) {
		return ErrorTypeRateLimit
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeNetwork
	}

	return ErrorTypeUnknown
}

// IsRetryable reports whether err is worth another attempt.
// Caller cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch Classify(err) {
	case ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeNetwork, ErrorTypeProvider:
		return true
	default:
		return false
	}
}

// RetryAfterProvider is implemented by errors that carry a backend-requested delay.
type RetryAfterProvider interface {
	GetRetryAfter() time.Duration
}

// RetryAfter extracts a backend-requested delay from err, or zero.
func RetryAfter(err error) time.Duration {
	var p RetryAfterProvider
	if errors.As(err, &p) {
		return p.GetRetryAfter()
	}
	return 0
}
