package token

import (
	"fmt"
	"strings"
	"time"
)

/* Token represents one disposable webhook endpoint.
 * Uses value semantics as it represents data, not behavior.
 * No tags here: storage and HTTP layers carry their own DTOs.
 */
type Token struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Config    ResponseConfig
}

// DisplayName falls back to the id for records stored without a name
func (t Token) DisplayName() string {
	if strings.TrimSpace(t.Name) == "" {
		return t.ID
	}
	return t.Name
}

// Header is one configured response header. Order matters, duplicates are allowed.
type Header struct {
	Key   string
	Value string
}

// ResponseConfig describes the reply every call to the token's endpoint receives
type ResponseConfig struct {
	StatusCode int
	BodyKind   BodyKind
	Body       string
	Headers    []Header
}

const (
	DefaultStatusCode = 200
	DefaultBody       = `{"success": true}`

	// 1xx is informational in net/http and never reaches the caller as a final reply
	MinStatusCode = 200
	MaxStatusCode = 599
)

// ValidStatus reports whether code can be replayed as a final response
func ValidStatus(code int) bool {
	return code >= MinStatusCode && code <= MaxStatusCode
}

// DefaultResponseConfig is attached to every freshly created token
func DefaultResponseConfig() ResponseConfig {
	return ResponseConfig{
		StatusCode: DefaultStatusCode,
		BodyKind:   JSON,
		Body:       DefaultBody,
		Headers:    []Header{{Key: "X-Powered-By", Value: "DevTools"}},
	}
}

// Normalize validates the config structurally and returns the cleaned copy.
// Unknown body kinds become JSON and headers without a key are dropped.
func (c ResponseConfig) Normalize() (ResponseConfig, error) {
	if c.StatusCode == 0 {
		return ResponseConfig{}, fmt.Errorf("%w: status code is required", ErrInvalidArgument)
	}
	if !ValidStatus(c.StatusCode) {
		return ResponseConfig{}, fmt.Errorf("%w: status code must be between %d and %d (got %d)",
			ErrInvalidArgument, MinStatusCode, MaxStatusCode, c.StatusCode)
	}
	if c.BodyKind.Validate() != nil {
		c.BodyKind = JSON
	}
	headers := make([]Header, 0, len(c.Headers))
	for _, h := range c.Headers {
		key := strings.TrimSpace(h.Key)
		if key == "" {
			continue
		}
		if strings.ContainsAny(key, " \t\r\n:") {
			return ResponseConfig{}, fmt.Errorf("%w: invalid header name %q", ErrInvalidArgument, key)
		}
		if strings.ContainsAny(h.Value, "\r\n") {
			return ResponseConfig{}, fmt.Errorf("%w: header %s contains a line break", ErrInvalidArgument, key)
		}
		headers = append(headers, Header{Key: key, Value: h.Value})
	}
	c.Headers = headers
	return c, nil
}
