package coingecko

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUpstreamUnavailable covers transport failures, non-2xx responses,
	// an open circuit and an abandoned rate-limit wait.
	ErrUpstreamUnavailable = errors.New("upstream market data unavailable")
	// ErrMalformedPayload means the response did not match the expected schema.
	ErrMalformedPayload = errors.New("malformed upstream payload")
)

// ErrorKind classifies an UpstreamError.
type ErrorKind int

const (
	KindUnavailable ErrorKind = iota
	KindMalformed
	// KindThrottled is a local rate-limit wait the client gave up on. The
	// upstream was never contacted.
	KindThrottled
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindThrottled:
		return "throttled"
	default:
		return "unavailable"
	}
}

// UpstreamError describes a failed call to the market data provider.
type UpstreamError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.sentinel().Error()
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("coingecko: %s: %v", msg, e.Cause)
	}
	return "coingecko: " + msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel of the error's kind.
func (e *UpstreamError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *UpstreamError) sentinel() error {
	if e.Kind == KindMalformed {
		return ErrMalformedPayload
	}
	return ErrUpstreamUnavailable
}

// Unavailable wraps cause as an ErrUpstreamUnavailable.
func Unavailable(message string, cause error) *UpstreamError {
	return &UpstreamError{Kind: KindUnavailable, Message: message, Cause: cause}
}

// Malformed builds an ErrMalformedPayload with a formatted reason.
func Malformed(format string, args ...interface{}) *UpstreamError {
	return &UpstreamError{Kind: KindMalformed, Message: fmt.Sprintf(format, args...)}
}

// Throttled wraps a rejected rate-limit wait as an ErrUpstreamUnavailable.
func Throttled(cause error) *UpstreamError {
	return &UpstreamError{Kind: KindThrottled, Message: "rate limit wait abandoned", Cause: cause}
}

// IsOutage reports whether err says the provider itself is failing: transport
// errors, 5xx and 429. Other 4xx responses, malformed payloads and local
// throttling are answers about the request, not about provider health.
func IsOutage(err error) bool {
	if err == nil {
		return false
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return true
	}
	switch {
	case ue.Kind == KindMalformed, ue.Kind == KindThrottled:
		return false
	case ue.StatusCode == http.StatusTooManyRequests:
		return true
	case ue.StatusCode >= 400 && ue.StatusCode < 500:
		return false
	}
	return true
}
