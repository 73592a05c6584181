package capture

import (
	"net/http"
	"strings"
	"time"
)

/* CapturedRequest is one inbound call to a token's endpoint.
 * Created exactly once by the ingestion pipeline and never mutated afterwards.
 * TokenID is a lookup key for the compound storage key, not an ownership pointer.
 */
type CapturedRequest struct {
	ID          string
	TokenID     string
	ReceivedAt  time.Time
	Method      string
	Path        string
	Headers     map[string]string
	Query       map[string][]string
	RemoteAddr  string
	ContentType string
	Size        int
	Body        Body
	// RespondedWith is frozen at response time so later config edits
	// never rewrite history.
	RespondedWith Response
}

// Response is the snapshot of what was actually sent back to the caller
type Response struct {
	Status  int
	Headers map[string]string
	Body    string
}

// Header looks up a captured header case-insensitively
func (c CapturedRequest) Header(name string) string {
	if v, ok := c.Headers[name]; ok {
		return v
	}
	if v, ok := c.Headers[http.CanonicalHeaderKey(name)]; ok {
		return v
	}
	for k, v := range c.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// FlattenHeaders joins multi-valued headers the way fetch-style clients present them
func FlattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[key] = strings.Join(values, ", ")
	}
	return out
}
