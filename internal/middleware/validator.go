package middleware

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

// ParseCaseID validates a case id path parameter.
func ParseCaseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid case id %q", raw)
	}
	return id, nil
}

// ValidateHandle checks a job handle before it is used in a lookup.
func ValidateHandle(handle string) error {
	if !handlePattern.MatchString(handle) {
		return fmt.Errorf("invalid job handle format")
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidatePage clamps a 1-based page number.
func ValidatePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}
