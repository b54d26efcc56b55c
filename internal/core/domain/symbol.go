package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// symbolPattern matches official document symbols: one of three archive
// prefixes, a RES or DEC marker, then slash-separated alphanumeric or
// punctuation segments, e.g. "A/RES/76/1".
var symbolPattern = regexp.MustCompile(`^(A|S|E)/(RES|DEC)/[A-Z0-9().-]+(?:/[A-Z0-9().-]+)*$`)

// DocumentSymbol scans values in order and returns the first one matching
// the document symbol pattern, nil when none matches.
func DocumentSymbol(values []string) *string {
	for _, value := range values {
		v := strings.TrimSpace(value)
		if symbolPattern.MatchString(v) {
			return &v
		}
	}
	return nil
}

// ParseRecID extracts the numeric record id from the tail of an external
// identifier (the segment after the final colon). Returns nil when the
// tail is not purely numeric.
func ParseRecID(identifier string) *int64 {
	if identifier == "" {
		return nil
	}
	tail := identifier
	if idx := strings.LastIndex(identifier, ":"); idx >= 0 {
		tail = identifier[idx+1:]
	}
	id, err := strconv.ParseInt(tail, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// First returns the first element of an ordered value list, nil when the
// list is empty.
func First(values []string) *string {
	if len(values) == 0 {
		return nil
	}
	return &values[0]
}
