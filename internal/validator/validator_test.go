package validator

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAccountID(t *testing.T) {
	valid := []string{"abc", "player_1", "A-B-C", strings.Repeat("x", 64)}
	for _, id := range valid {
		if err := ValidateAccountID(id); err != nil {
			t.Fatalf("%q should be valid: %v", id, err)
		}
	}
	invalid := []string{"", "ab", "has space", "semi;colon", strings.Repeat("x", 65), "émile"}
	for _, id := range invalid {
		if err := ValidateAccountID(id); !errors.Is(err, ErrInvalidAccountID) {
			t.Fatalf("%q should be invalid, got %v", id, err)
		}
	}
}

func TestValidateItemCode(t *testing.T) {
	if err := ValidateItemCode("frostfang"); err != nil {
		t.Fatalf("valid code rejected: %v", err)
	}
	for _, code := range []string{"X", "UPPER", "has-dash", ""} {
		if err := ValidateItemCode(code); !errors.Is(err, ErrInvalidItemCode) {
			t.Fatalf("%q should be invalid, got %v", code, err)
		}
	}
}

func TestSanitizeMessageStripsControlCharacters(t *testing.T) {
	cleaned, err := SanitizeMessage("hi\x00 the\tre\x1b", 120, 500)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if cleaned != "hi there" {
		t.Fatalf("got %q", cleaned)
	}
}

func TestSanitizeMessageKeepsNewlines(t *testing.T) {
	cleaned, err := SanitizeMessage("line one\nline two", 120, 500)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if cleaned != "line one\nline two" {
		t.Fatalf("newlines should survive, got %q", cleaned)
	}
}

func TestSanitizeMessageSoftTruncates(t *testing.T) {
	cleaned, err := SanitizeMessage(strings.Repeat("a", 200), 120, 500)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if len(cleaned) != 120 {
		t.Fatalf("expected soft truncation to 120, got %d", len(cleaned))
	}
}

func TestSanitizeMessageHardLimit(t *testing.T) {
	if _, err := SanitizeMessage(strings.Repeat("a", 501), 120, 500); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("over the hard limit should reject, got %v", err)
	}
}
