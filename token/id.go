package token

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const randomSuffixLength = 8

// NewID builds a URL-safe id: base36 creation millis followed by random hex.
// The timestamp prefix makes a uniqueness check against the store unnecessary.
func NewID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strconv.FormatInt(now.UnixMilli(), 36) + random[:randomSuffixLength]
}

// DefaultName is the label given to tokens created without one
func DefaultName(now time.Time) string {
	return "New Token-" + now.UTC().Format("200601021504")
}
