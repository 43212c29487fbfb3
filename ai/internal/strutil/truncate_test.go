package strutil

import (
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"empty string", "", 10, ""},
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 5, "hello..."},
		{"negative maxLen", "hello", -1, ""},
		{"zero maxLen", "hello", 0, ""},
		{"accented exact", "crème", 5, "crème"},
		{"accented truncated", "crèmeux", 5, "crème..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Truncate(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
			}
		})
	}
}

func TestClip(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short", "apply", 10, "apply"},
		{"cut", "apply gently", 5, "apply"},
		{"zero", "apply", 0, ""},
		{"multibyte", "sérum", 2, "sé"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clip(tt.input, tt.maxLen); got != tt.expected {
				t.Errorf("Clip(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
			}
		})
	}

	long := strings.Repeat("é", 400)
	if got := []rune(Clip(long, 320)); len(got) != 320 {
		t.Errorf("Clip of 400 runes to 320 returned %d runes", len(got))
	}
}
