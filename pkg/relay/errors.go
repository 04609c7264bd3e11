package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedStep is returned for steps the executor cannot perform
var ErrUnsupportedStep = errors.New("unsupported step")

// CodeUserRecipientMismatch is returned when a wrap is quoted for a different recipient
const CodeUserRecipientMismatch = "USER_RECIPIENT_MISMATCH"

// APIError is a non-2xx response from the API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	// Try to extract the actual error message from the response
	var parsed struct {
		Message   string `json:"message"`
		Error     string `json:"error"`
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Code = parsed.ErrorCode
		apiErr.Message = parsed.Message
		if apiErr.Message == "" {
			apiErr.Message = parsed.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// IsRecipientMismatch reports whether err is the service's user/recipient mismatch rejection
func IsRecipientMismatch(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == CodeUserRecipientMismatch {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "user and recipient") && strings.Contains(msg, "match")
}
