package domain

import (
	"fmt"
	"regexp"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ResolveSessionID maps an empty id to DefaultSessionID and rejects ids that could escape
// the storage namespace. The bool reports whether the default was applied.
func ResolveSessionID(id string) (string, bool, error) {
	if id == "" {
		return DefaultSessionID, true, nil
	}
	if !sessionIDPattern.MatchString(id) {
		return "", false, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return id, false, nil
}
