package auth

import (
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeInput strips control characters and HTML-escapes free text that
// is stored and later rendered, such as device names.
func SanitizeInput(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, input)
	return html.EscapeString(cleaned)
}

// ValidateStringLength checks that value has between min and max characters.
// A zero bound is not enforced.
func ValidateStringLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if min > 0 && n < min {
		if min == 1 {
			return fmt.Errorf("%s is required", field)
		}
		return fmt.Errorf("%s must be at least %d characters long", field, min)
	}
	if max > 0 && n > max {
		return fmt.Errorf("%s must be at most %d characters long", field, max)
	}
	return nil
}
