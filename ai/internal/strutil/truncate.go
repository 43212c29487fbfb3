// Package strutil holds the rune-safe string helpers shared by the
// normalizers and summarizers.
package strutil

import "unicode/utf8"

// Ellipsis marks text shortened by Truncate.
const Ellipsis = "..."

// Truncate keeps the first maxLen runes of s and appends Ellipsis when
// anything was cut. A non-positive maxLen yields "".
func Truncate(s string, maxLen int) string {
	clipped := Clip(s, maxLen)
	if clipped == "" || len(clipped) == len(s) {
		return clipped
	}
	return clipped + Ellipsis
}

// Clip cuts s to at most maxLen runes without adding a marker.
func Clip(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i]
		}
		n++
	}
	return s
}
