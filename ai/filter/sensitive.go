// Package filter masks personal data in conversation text before it leaves
// the live transcript, e.g. when it is condensed into a stored summary.
package filter

import (
	"regexp"
	"sort"
	"strings"
)

// Kind names one class of personal data.
type Kind int

const (
	Email Kind = iota
	Phone
	Card
	IP
)

func (k Kind) String() string {
	switch k {
	case Email:
		return "email"
	case Phone:
		return "phone"
	case Card:
		return "card"
	case IP:
		return "ip"
	default:
		return "unknown"
	}
}

// Card numbers are matched before phone numbers so a long digit run is
// masked as a card.
var patterns = []struct {
	kind Kind
	re   *regexp.Regexp
}{
	{Email, regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
	{Card, regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)},
	{IP, regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d\d?)\.){3}(?:25[0-5]|2[0-4]\d|1?\d\d?)\b`)},
	{Phone, regexp.MustCompile(`(?:\+\d{1,3}[ .-]?)?(?:\(\d{2,4}\)[ .-]?)?\d{2,4}(?:[ .-]?\d{2,4}){2,3}`)},
}

// Match is one span of personal data found in a text.
type Match struct {
	Kind  Kind
	Start int
	End   int
}

// Config selects what is masked and how.
type Config struct {
	Kinds []Kind
	// KeepLast leaves the trailing characters of phone and card numbers
	// readable, like a receipt does.
	KeepLast int
	MaskChar rune
}

// DefaultConfig masks every kind and keeps the last four digits.
func DefaultConfig() Config {
	return Config{Kinds: []Kind{Email, Phone, Card, IP}, KeepLast: 4, MaskChar: '*'}
}

// Filter finds and masks personal data. It is safe for concurrent use.
type Filter struct {
	cfg     Config
	enabled map[Kind]bool
}

func NewFilter(cfg Config) *Filter {
	if cfg.MaskChar == 0 {
		cfg.MaskChar = '*'
	}
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = DefaultConfig().Kinds
	}
	f := &Filter{cfg: cfg, enabled: make(map[Kind]bool, len(cfg.Kinds))}
	for _, k := range cfg.Kinds {
		f.enabled[k] = true
	}
	return f
}

// Default returns a filter with DefaultConfig.
func Default() *Filter {
	return NewFilter(DefaultConfig())
}

// FindMatches returns non-overlapping matches ordered by position. Earlier
// patterns win an overlap.
func (f *Filter) FindMatches(text string) []Match {
	var out []Match
	for _, p := range patterns {
		if !f.enabled[p.kind] {
			continue
		}
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			if p.kind == Phone && !phoneLike(text[loc[0]:loc[1]]) {
				continue
			}
			if !overlaps(out, loc[0], loc[1]) {
				out = append(out, Match{Kind: p.kind, Start: loc[0], End: loc[1]})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Redact returns text with every match masked.
func (f *Filter) Redact(text string) string {
	matches := f.FindMatches(text)
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, m := range matches {
		b.WriteString(text[prev:m.Start])
		b.WriteString(f.mask(m.Kind, text[m.Start:m.End]))
		prev = m.End
	}
	b.WriteString(text[prev:])
	return b.String()
}

func (f *Filter) mask(kind Kind, s string) string {
	keep := 0
	if kind == Phone || kind == Card {
		keep = f.cfg.KeepLast
	}
	digits := countDigits(s)

	var b strings.Builder
	seen := 0
	for _, r := range s {
		switch {
		case kind == Email && r == '@':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			seen++
			if digits-seen < keep {
				b.WriteRune(r)
			} else {
				b.WriteRune(f.cfg.MaskChar)
			}
		case kind == Email || kind == IP:
			if r == '.' && kind == IP {
				b.WriteRune(r)
			} else {
				b.WriteRune(f.cfg.MaskChar)
			}
		default:
			// separators in phone and card numbers stay as written
			b.WriteRune(r)
		}
	}
	return b.String()
}

// phoneLike rejects short digit groups such as dates or prices. Numbers
// without a country code need at least nine digits.
func phoneLike(s string) bool {
	if strings.HasPrefix(s, "+") {
		return countDigits(s) >= 7
	}
	return countDigits(s) >= 9
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func overlaps(list []Match, start, end int) bool {
	for _, m := range list {
		if start < m.End && m.Start < end {
			return true
		}
	}
	return false
}
