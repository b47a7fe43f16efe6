package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// QuotaError marks a provider rejection caused by exhausted quota or rate
// limits (HTTP 429, "resource exhausted"). Quota errors count against the
// circuit breaker; other failures do not.
type QuotaError struct {
	Err        error
	StatusCode int
}

func (e *QuotaError) Error() string {
	if e.Err != nil {
		return "quota exhausted: " + e.Err.Error()
	}
	return "quota exhausted"
}

func (e *QuotaError) Unwrap() error { return e.Err }

// TransientError wraps a failure expected to clear on its own, such as a
// provider overload (503) or a network timeout.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return "transient: " + e.Err.Error()
	}
	return "transient error"
}

func (e *TransientError) Unwrap() error { return e.Err }

// MalformedError marks a provider response that arrived but could not be
// used: unparseable JSON or required keys missing. Retryable, since the
// same prompt often parses on the next attempt.
type MalformedError struct {
	Err     error
	Missing []string
}

func (e *MalformedError) Error() string {
	if len(e.Missing) > 0 {
		return "malformed response: missing " + strings.Join(e.Missing, ", ")
	}
	if e.Err != nil {
		return "malformed response: " + e.Err.Error()
	}
	return "malformed response"
}

func (e *MalformedError) Unwrap() error { return e.Err }

// IsQuota returns true if the error (or any error in its chain) is a
// QuotaError, or if the provider's message matches common quota patterns.
func IsQuota(err error) bool {
	if err == nil {
		return false
	}

	var qe *QuotaError
	if errors.As(err, &qe) {
		return true
	}

	msg := strings.ToLower(err.Error())
	quotaPatterns := []string{
		"429",
		"quota",
		"resource exhausted",
		"resource_exhausted",
		"rate limit",
	}
	for _, p := range quotaPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (server
// overload, network timeouts, connection resets).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"503",
		"overloaded",
		"unavailable",
		"deadline exceeded",
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsMalformed returns true if the error chain contains a MalformedError.
func IsMalformed(err error) bool {
	if err == nil {
		return false
	}
	var me *MalformedError
	return errors.As(err, &me)
}

// StatusError converts a non-2xx HTTP status into the matching error type.
// Statuses below 400 return nil.
func StatusError(statusCode int, err error) error {
	switch statusCode {
	case http.StatusTooManyRequests:
		return &QuotaError{Err: err, StatusCode: statusCode}
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return &TransientError{Err: err, StatusCode: statusCode}
	}
	if statusCode >= 400 {
		return err
	}
	return nil
}

// Classify buckets an error for the failure log: "quota", "malformed",
// "transient", or "permanent".
func Classify(err error) string {
	switch {
	case IsQuota(err):
		return "quota"
	case IsMalformed(err):
		return "malformed"
	case IsTransient(err):
		return "transient"
	default:
		return "permanent"
	}
}
