package social

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sentinel/pkg/retry"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		status    int
		wantFatal bool
	}{
		{name: "rate limit code 4", code: 4, status: 400, wantFatal: false},
		{name: "rate limit code 17", code: 17, status: 400, wantFatal: false},
		{name: "page throttle code 32", code: 32, status: 400, wantFatal: false},
		{name: "custom rate limit 613", code: 613, status: 400, wantFatal: false},
		{name: "expired token 190", code: 190, status: 401, wantFatal: true},
		{name: "permission error 10", code: 10, status: 403, wantFatal: true},
		{name: "invalid parameter 100", code: 100, status: 400, wantFatal: true},
		{name: "permission range 200", code: 200, status: 403, wantFatal: true},
		{name: "permission range 299", code: 299, status: 403, wantFatal: true},
		{name: "server error", code: 1, status: 500, wantFatal: false},
		{name: "unknown code stays retryable", code: 9999, status: 400, wantFatal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyError(&GraphError{Code: tt.code, HTTPStatus: tt.status, Message: "boom"})
			assert.Equal(t, tt.wantFatal, retry.IsFatal(err))
		})
	}
}

func TestGraphErrorMessage(t *testing.T) {
	err := &GraphError{Code: 190, Subcode: 463, HTTPStatus: 401, Message: "Error validating access token"}
	assert.Contains(t, err.Error(), "code=190")
	assert.Contains(t, err.Error(), "Error validating access token")
}

func TestIsAlreadyHidden(t *testing.T) {
	assert.True(t, isAlreadyHidden(&GraphError{Message: "Comment is already hidden"}))
	assert.False(t, isAlreadyHidden(&GraphError{Message: "Unsupported request"}))
}
