package httpclient

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// HTTPError represents a non-success response from an upstream service
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, url, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}

// StatusCode returns the upstream status of err, or 0 when err is not an *HTTPError
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// upstreamMessage picks the human readable part of an error body. GitHub
// reports "message" (plus per-field "errors"), OAuth servers report
// "error_description".
func upstreamMessage(status string, body []byte) string {
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		for _, path := range []string{"message", "error_description", "error"} {
			if msg := parsed.Get(path); msg.Type == gjson.String && msg.String() != "" {
				details := parsed.Get("errors.#.message").Array()
				if len(details) == 0 {
					return msg.String()
				}
				parts := make([]string, 0, len(details))
				for _, d := range details {
					parts = append(parts, d.String())
				}
				return msg.String() + " (" + strings.Join(parts, "; ") + ")"
			}
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		if len(text) > 512 {
			text = text[:512]
		}
		return text
	}
	return status
}
