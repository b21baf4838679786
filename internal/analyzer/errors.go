package analyzer

import (
	"errors"
	"fmt"
)

// Sentinel errors for analysis service failures.
var (
	ErrNetwork         = errors.New("analysis service unreachable")
	ErrTimeout         = errors.New("analysis service timeout")
	ErrInvalidResponse = errors.New("analysis service returned invalid response")
)

// Fallback messages shown when the service gives no usable detail.
const (
	FallbackAnalyze   = "Request failed."
	FallbackKnowledge = "Knowledge save failed."
	FallbackFollowup  = "Follow-up request failed."
	FallbackNetwork   = "Unable to reach the analysis service."
)

// ServiceError is a non-2xx answer from the analysis service.
type ServiceError struct {
	StatusCode int
	// Detail is the server-provided message, empty when the body had none.
	Detail string
}

func (e *ServiceError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("analysis service error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("analysis service error: status %d: %s", e.StatusCode, e.Detail)
}

// UserMessage picks the message to show for err: the service detail when there is one,
// a connectivity message for transport failures, else fallback.
func UserMessage(err error, fallback string) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Detail != "" {
		return svcErr.Detail
	}
	if errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout) {
		return FallbackNetwork
	}
	return fallback
}
