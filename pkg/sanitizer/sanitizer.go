package sanitizer

import (
	"net/mail"
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reKeepLettersDigits = regexp.MustCompile(`[^0-9\p{L}]+`)
	reTrimUnderscores   = regexp.MustCompile(`_+`)
)

func trimAndLower(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

func collapseUnderscores(s string) string {
	s = reTrimUnderscores.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// SanitizeLabel normalizes course types and venue labels into a stable
// lowercase underscore form suitable for comparison and indexing.
func SanitizeLabel(input string) string {
	p := Pipeline{
		trimAndLower,
		func(s string) string { return reKeepLettersDigits.ReplaceAllString(s, "_") },
		collapseUnderscores,
	}
	return p.Apply(input)
}

// SanitizeEmail lowercases and trims an address, returning "" when the
// result does not parse as a bare address.
func SanitizeEmail(input string) string {
	s := trimAndLower(input)
	if s == "" {
		return ""
	}

	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return ""
	}
	return s
}

// SanitizeHolderKey trims and lowercases a holder key so the same caller
// always maps to the same key.
func SanitizeHolderKey(input string) string {
	return trimAndLower(input)
}
