package capture

import (
	"encoding/json"
	"fmt"
)

// BodyKind tags the decoded shape of a captured body
type BodyKind int

const (
	None BodyKind = iota + 1
	JSON
	Form
	Text
	Binary
)

// String returns the string representation of the body kind
func (k BodyKind) String() string {
	switch k {
	case None:
		return "none"
	case JSON:
		return "json"
	case Form:
		return "form"
	case Text:
		return "text"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// NewBodyKind creates a BodyKind from a string
func NewBodyKind(s string) BodyKind {
	switch s {
	case "json":
		return JSON
	case "form":
		return Form
	case "text":
		return Text
	case "binary":
		return Binary
	default:
		return None
	}
}

/* Body is a tagged variant decided once at decode time and carried unchanged.
 * Value always holds valid JSON: the object for JSON, a field map for Form,
 * a string for Text and a placeholder string for Binary. None is JSON null.
 */
type Body struct {
	Kind  BodyKind
	Value json.RawMessage
}

var null = json.RawMessage("null")

// NullBody is used for empty bodies and for anything that failed to decode
func NullBody() Body {
	return Body{Kind: None, Value: null}
}

// JSONBody keeps raw as-is; callers must have checked json.Valid
func JSONBody(raw []byte) Body {
	return Body{Kind: JSON, Value: json.RawMessage(raw)}
}

// FormBody holds fields as string, or []string when a name repeats
func FormBody(fields map[string]any) Body {
	return Body{Kind: Form, Value: mustMarshal(fields)}
}

func TextBody(s string) Body {
	return Body{Kind: Text, Value: mustMarshal(s)}
}

func BinaryBody(size int) Body {
	return Body{Kind: Binary, Value: mustMarshal(fmt.Sprintf("[binary data: %d bytes]", size))}
}

// JSONValue returns the value to embed in API output, never nil
func (b Body) JSONValue() json.RawMessage {
	if len(b.Value) == 0 {
		return null
	}
	return b.Value
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return null
	}
	return data
}
