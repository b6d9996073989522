package types

import (
	"strings"
	"testing"
)

func TestIsValidPlayerName(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{"simple", "Alice", true},
		{"single rune", "A", true},
		{"unicode", "Åse", true},
		{"max length", strings.Repeat("a", 50), true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", 51), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValidPlayerName(tc.input); got != tc.want {
				t.Errorf("IsValidPlayerName(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestIsValidGameID(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{"letters", "ABCDEF", true},
		{"mixed", "A1B2C3", true},
		{"digits", "123456", true},
		{"too short", "ABC", false},
		{"too long", "ABCDEFG", false},
		{"lowercase", "abcdef", false},
		{"punctuation", "ABC-EF", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValidGameID(tc.input); got != tc.want {
				t.Errorf("IsValidGameID(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}
