package enums

import (
	"fmt"
	"regexp"
	"strings"
)

// StatusType names a boolean lifecycle flag on an aggregate order. The set is
// open-ended: deployments add flags without a schema change, so values are
// validated by shape rather than against a closed list.
type StatusType string

const (
	StatusTypePaid      StatusType = "paid"
	StatusTypeShipped   StatusType = "shipped"
	StatusTypeConfirmed StatusType = "confirmed"
	StatusTypeCanceled  StatusType = "canceled"
)

var statusTagPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// defaultsByType holds the value a flag is considered to have before any
// transition is recorded for it. Unknown tags default to false.
var defaultsByType = map[StatusType]bool{
	StatusTypePaid:      false,
	StatusTypeShipped:   false,
	StatusTypeConfirmed: false,
	StatusTypeCanceled:  false,
}

// IsValid reports whether the tag matches the convention shape
// (lowercase snake_case, at most 64 characters).
func (t StatusType) IsValid() bool {
	return statusTagPattern.MatchString(string(t))
}

// Default returns the implicit value of the flag before its first transition.
func (t StatusType) Default() bool {
	return defaultsByType[t]
}

// ParseStatusType normalizes raw input into a StatusType.
func ParseStatusType(value string) (StatusType, error) {
	tag := StatusType(strings.ToLower(strings.TrimSpace(value)))
	if !tag.IsValid() {
		return "", fmt.Errorf("invalid status type %q", value)
	}
	return tag, nil
}
