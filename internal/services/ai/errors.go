package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrRateLimited indicates the API rate limit was exceeded
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded indicates the API quota was exceeded
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrBackendTimeout means the backend did not answer within its deadline
	ErrBackendTimeout = errors.New("backend timeout")
	// ErrBackendUnreachable means the backend could not be reached or failed
	ErrBackendUnreachable = errors.New("backend unreachable")
	// ErrMalformedResponse means a JSON object was present but did not match
	// the schema. The reply text is kept and no commands are produced.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrAbstained means the backend declined to answer
	ErrAbstained = errors.New("backend abstained")
)

// FailureKind classifies a backend error
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureTimeout     FailureKind = "timeout"
	FailureUnreachable FailureKind = "unreachable"
	FailureRateLimited FailureKind = "rate_limited"
	FailureQuota       FailureKind = "quota"
	FailureBreakerOpen FailureKind = "breaker_open"
	FailureMalformed   FailureKind = "malformed"
	FailureAbstained   FailureKind = "abstained"
)

// Classify maps an error returned by a backend call onto a FailureKind
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var netErr net.Error
	switch {
	case errors.Is(err, ErrAbstained):
		return FailureAbstained
	case errors.Is(err, ErrMalformedResponse):
		return FailureMalformed
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrBackendTimeout):
		return FailureTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return FailureTimeout
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return FailureBreakerOpen
	case IsQuotaError(err):
		return FailureQuota
	case IsRateLimitError(err):
		return FailureRateLimited
	default:
		return FailureUnreachable
	}
}

// APIError represents an error from the AI provider API
type APIError struct {
	Message     string
	Type        string
	Code        string
	StatusCode  int
	RetryAfter  *time.Duration
	IsPermanent bool // true for quota errors, false for rate limits
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 && !apiErr.IsPermanent
	}

	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

// IsQuotaError checks if an error is a quota exhaustion error
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsPermanent || apiErr.Code == "insufficient_quota"
	}

	errStr := err.Error()
	return strings.Contains(errStr, "insufficient_quota") ||
		strings.Contains(errStr, "billing")
}

// ExtractAPIError extracts API error details from a 429 error returned by
// the OpenAI SDK. It returns nil for anything else.
func ExtractAPIError(err error) *APIError {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "429") {
		return nil
	}

	apiErr := &APIError{
		StatusCode: 429,
		Message:    errStr,
		Type:       "rate_limit_error",
	}

	// SDK errors often embed the JSON error body
	if jsonStart := strings.Index(errStr, "{"); jsonStart != -1 {
		jsonStr := errStr[jsonStart:]
		if jsonEnd := strings.LastIndex(jsonStr, "}"); jsonEnd != -1 {
			jsonStr = jsonStr[:jsonEnd+1]
			var errorData struct {
				Message string `json:"message"`
				Type    string `json:"type"`
				Code    string `json:"code"`
			}
			if json.Unmarshal([]byte(jsonStr), &errorData) == nil {
				apiErr.Message = errorData.Message
				apiErr.Type = errorData.Type
				apiErr.Code = errorData.Code
				if errorData.Code == "insufficient_quota" {
					apiErr.IsPermanent = true
				}
			}
		}
	}

	retryAfter := 60 * time.Second
	if apiErr.IsPermanent {
		retryAfter = time.Hour
	}
	apiErr.RetryAfter = &retryAfter

	return apiErr
}
