package validator

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var (
	ErrInvalidAccountID = errors.New("invalid account id")
	ErrInvalidItemCode  = errors.New("invalid item code")
	ErrMessageTooLong   = errors.New("message too long")
)

var (
	accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)
	itemCodeRegex  = regexp.MustCompile(`^[a-z0-9_]{2,40}$`)
)

func ValidateAccountID(accountID string) error {
	if !accountIDRegex.MatchString(accountID) {
		return ErrInvalidAccountID
	}
	return nil
}

func ValidateItemCode(code string) error {
	if !itemCodeRegex.MatchString(code) {
		return ErrInvalidItemCode
	}
	return nil
}

// SanitizeMessage strips control characters and truncates to softLimit runes.
// Messages longer than hardLimit bytes before sanitizing are rejected
// outright rather than silently shortened.
func SanitizeMessage(message string, softLimit, hardLimit int) (string, error) {
	if hardLimit > 0 && len(message) > hardLimit {
		return "", ErrMessageTooLong
	}
	var b strings.Builder
	for _, r := range message {
		if unicode.IsControl(r) && r != '\n' {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.TrimSpace(b.String())
	runes := []rune(cleaned)
	if softLimit > 0 && len(runes) > softLimit {
		cleaned = string(runes[:softLimit])
	}
	return cleaned, nil
}
