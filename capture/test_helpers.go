package capture

import "github.com/stretchr/testify/mock"

// MatchCapture creates a custom matcher for captured request arguments in mocks
func MatchCapture(matcher func(CapturedRequest) bool) interface{} {
	return mock.MatchedBy(matcher)
}
