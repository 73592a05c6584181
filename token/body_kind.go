package token

import "fmt"

/* BodyKind is the declared type of a configured response body.
 * It only drives the Content-Type header; the body itself is never validated.
 */
type BodyKind int

const (
	JSON BodyKind = iota + 1
	Text
	XML
	HTML
)

// String returns the string representation of the body kind
func (k BodyKind) String() string {
	switch k {
	case JSON:
		return "json"
	case Text:
		return "text"
	case XML:
		return "xml"
	case HTML:
		return "html"
	default:
		return "unknown"
	}
}

// NewBodyKind creates a BodyKind from a string, defaulting to JSON
func NewBodyKind(s string) BodyKind {
	switch s {
	case "json":
		return JSON
	case "text":
		return Text
	case "xml":
		return XML
	case "html":
		return HTML
	default:
		return JSON
	}
}

// Validate checks if the body kind is valid
func (k BodyKind) Validate() error {
	if k < JSON || k > HTML {
		return fmt.Errorf("invalid body kind: %d", k)
	}
	return nil
}
