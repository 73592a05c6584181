package response

import (
	"net/http"

	"github.com/marcelsud/webhook-sink/token"
)

// Response is what a webhook caller receives
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// framing headers belong to the HTTP server, a configured value would corrupt the reply
var framingHeaders = map[string]struct{}{
	"Content-Length":    {},
	"Transfer-Encoding": {},
}

// ContentType maps a configured body kind to the forced Content-Type value
func ContentType(kind token.BodyKind) string {
	switch kind {
	case token.Text:
		return "text/plain"
	case token.XML:
		return "application/xml"
	case token.HTML:
		return "text/html"
	default:
		return "application/json"
	}
}

/* Synthesize is a pure mapping from a stored config to a reply.
 * Configured headers apply in order and the last duplicate wins, then a single
 * Content-Type derived from the body kind overrides whatever the user set.
 * The body is a dumb pipe: emitted byte for byte, never validated.
 * The same config always yields the same response, whatever the request was.
 */
func Synthesize(cfg token.ResponseConfig) Response {
	header := make(http.Header, len(cfg.Headers)+1)
	for _, h := range cfg.Headers {
		if h.Key == "" {
			continue
		}
		key := http.CanonicalHeaderKey(h.Key)
		if _, skip := framingHeaders[key]; skip {
			continue
		}
		header.Set(key, h.Value)
	}
	header.Set("Content-Type", ContentType(cfg.BodyKind))

	status := cfg.StatusCode
	if !token.ValidStatus(status) {
		status = token.DefaultStatusCode
	}

	return Response{
		StatusCode: status,
		Header:     header,
		Body:       []byte(cfg.Body),
	}
}

// Write sends r to w
func (r Response) Write(w http.ResponseWriter) error {
	dst := w.Header()
	for key, values := range r.Header {
		dst[key] = append([]string(nil), values...)
	}
	w.WriteHeader(r.StatusCode)
	_, err := w.Write(r.Body)
	return err
}

// Snapshot flattens the response for the capture history
func (r Response) Snapshot() (status int, headers map[string]string, body string) {
	headers = make(map[string]string, len(r.Header))
	for key, values := range r.Header {
		if len(values) > 0 {
			headers[key] = values[len(values)-1]
		}
	}
	return r.StatusCode, headers, string(r.Body)
}
