package types

import (
	"regexp"
)

// Compiled once at package initialization; identifier validation runs on
// every join and operation request.
var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidShelfID checks that a shelf identifier is usable as a room name
// suffix and a cache key segment.
func IsValidShelfID(shelfID string) bool {
	if len(shelfID) < 1 || len(shelfID) > 64 {
		return false
	}
	return identifierRegex.MatchString(shelfID)
}

// IsValidOperatorID checks an operator identifier's format.
func IsValidOperatorID(operatorID string) bool {
	if len(operatorID) < 1 || len(operatorID) > 64 {
		return false
	}
	return identifierRegex.MatchString(operatorID)
}

// IsValidOperationType reports whether the type is one the inventory service
// understands. The gateway rejects anything else before delegating.
func IsValidOperationType(opType string) bool {
	switch opType {
	case OperationPlace, OperationRemove, OperationMove:
		return true
	default:
		return false
	}
}
