package token

import "github.com/stretchr/testify/mock"

// MatchToken creates a custom matcher for token arguments in mocks
func MatchToken(matcher func(Token) bool) interface{} {
	return mock.MatchedBy(matcher)
}
