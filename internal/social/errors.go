package social

import (
	"fmt"
	"net/http"

	"sentinel/pkg/retry"
)

// GraphError is the error body returned by the Meta Graph API.
type GraphError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	Subcode   int    `json:"error_subcode"`
	FBTraceID string `json:"fbtrace_id"`

	HTTPStatus int `json:"-"`
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph api error (code=%d, subcode=%d, status=%d): %s",
		e.Code, e.Subcode, e.HTTPStatus, e.Message)
}

// Transient Graph API error codes: 4 and 17 are rate limits, 32 is a
// page-level throttle, 613 is a custom rate limit.
func isTransientCode(code int) bool {
	switch code {
	case 4, 17, 32, 613:
		return true
	}
	return false
}

// Permanent Graph API error codes: 190 is an invalid or expired token,
// 10 and 200-299 are permission errors, 100 is an invalid parameter
// (typically a deleted object).
func isPermanentCode(code int) bool {
	if code == 190 || code == 10 || code == 100 {
		return true
	}
	return code >= 200 && code <= 299
}

// classifyError maps a Graph API failure onto the retry taxonomy.
// Unknown codes are treated as transient and capped by the redelivery
// budget.
func classifyError(err *GraphError) error {
	if isPermanentCode(err.Code) {
		return retry.NewFatalError(err)
	}
	if isTransientCode(err.Code) || err.HTTPStatus >= http.StatusInternalServerError {
		return retry.NewRetryableError(err)
	}
	return retry.NewRetryableError(err)
}
