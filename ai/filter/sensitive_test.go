package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	f := Default()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"email", "mail me at jane.doe@example.com please", "mail me at ********@*********** please"},
		{"phone with country code", "call +1 415-555-0134 today", "call +* ***-***-0134 today"},
		{"card", "card 4111 1111 1111 1111 thanks", "card **** **** **** 1111 thanks"},
		{"ip", "from 192.168.1.20", "from ***.***.*.**"},
		{"dates and prices untouched", "on 2026-01-15 I paid 18.50", "on 2026-01-15 I paid 18.50"},
		{"plain text", "my skin is dry", "my skin is dry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Redact(tt.in))
		})
	}
}

func TestFindMatchesOrderedWithoutOverlap(t *testing.T) {
	matches := Default().FindMatches("a@b.io then 4111-1111-1111-1111")
	require.Len(t, matches, 2)
	assert.Equal(t, Email, matches[0].Kind)
	assert.Equal(t, Card, matches[1].Kind, "the card span is not reported again as a phone")
	assert.Less(t, matches[0].End, matches[1].Start)
}

func TestFilterOnlyEnabledKinds(t *testing.T) {
	f := NewFilter(Config{Kinds: []Kind{Email}})
	assert.Equal(t, "*@**** or +44 20 7946 0958", f.Redact("a@b.io or +44 20 7946 0958"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "card", Card.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
