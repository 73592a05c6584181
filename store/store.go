package store

import (
	"errors"
	"strings"
)

/* The expiring key-value store is an external collaborator.
 * This package only names its keyspace and the single infrastructure failure
 * the rest of the system needs to recognise; adapters live in subpackages.
 */

// ErrUnavailable is wrapped by adapters whenever the store cannot be reached,
// times out or answers with an unexpected error. Callers treat it as retryable.
var ErrUnavailable = errors.New("store unavailable")

const (
	DefaultPrefix = "webhook"

	tokenNamespace   = "token"
	requestNamespace = "request"
)

// Keyspace builds every key the sink writes.
// Tokens:   {prefix}:token:{tokenID}
// Captures: {prefix}:request:{tokenID}:{requestID}
type Keyspace struct {
	Prefix string
}

// NewKeyspace returns a Keyspace, falling back to DefaultPrefix.
func NewKeyspace(prefix string) Keyspace {
	prefix = strings.Trim(prefix, ": ")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keyspace{Prefix: prefix}
}

func (k Keyspace) Token(tokenID string) string {
	return k.Prefix + ":" + tokenNamespace + ":" + tokenID
}

// TokenPattern matches every token key.
func (k Keyspace) TokenPattern() string {
	return k.Prefix + ":" + tokenNamespace + ":*"
}

// TokenID extracts the token id from a token key. ok is false for foreign keys.
func (k Keyspace) TokenID(key string) (string, bool) {
	prefix := k.Prefix + ":" + tokenNamespace + ":"
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(key, prefix)
	return id, id != ""
}

func (k Keyspace) Capture(tokenID, requestID string) string {
	return k.CapturePrefix(tokenID) + requestID
}

// CapturePrefix is the compound-key prefix shared by all captures of a token.
func (k Keyspace) CapturePrefix(tokenID string) string {
	return k.Prefix + ":" + requestNamespace + ":" + tokenID + ":"
}

// CapturePattern matches every capture of one token.
func (k Keyspace) CapturePattern(tokenID string) string {
	return escapeGlob(k.CapturePrefix(tokenID)) + "*"
}

// AllCapturesPattern matches every capture of every token.
func (k Keyspace) AllCapturesPattern() string {
	return k.Prefix + ":" + requestNamespace + ":*"
}

// CaptureTokenID extracts the owning token id from a capture key.
func (k Keyspace) CaptureTokenID(key string) (string, bool) {
	prefix := k.Prefix + ":" + requestNamespace + ":"
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(key, prefix)
	i := strings.LastIndex(rest, ":")
	if i <= 0 {
		return "", false
	}
	return rest[:i], true
}

// escapeGlob protects glob metacharacters so a token id is matched literally.
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
