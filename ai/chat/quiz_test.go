package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outsideAnswers strips the answer block so the rest of the instruction can
// be checked for leaked quiz data.
func outsideAnswers(t *testing.T, content string) string {
	t.Helper()
	start := strings.Index(content, "<quiz_answers>")
	end := strings.Index(content, "</quiz_answers>")
	require.True(t, start >= 0 && end > start, content)
	return content[:start] + content[end+len("</quiz_answers>"):]
}

func TestParseInboundPlainMessage(t *testing.T) {
	in := parseInbound("hello", "")
	assert.Equal(t, RoleUser, in.Role)
	assert.Equal(t, "hello", in.Content)
	assert.False(t, in.Quiz)

	in = parseInbound("hello", "u42")
	assert.Equal(t, "hello\n\n[userId: u42]", in.Content)
}

func TestParseInboundSentinelIsolation(t *testing.T) {
	in := parseInbound(QuizSentinel+`{"answers":[{"question":"Q","answer":"A"}]}`, "")
	require.True(t, in.Quiz)
	assert.Equal(t, RoleSystem, in.Role)
	require.NotEmpty(t, in.Content)

	rest := outsideAnswers(t, in.Content)
	assert.NotContains(t, rest, `"Q"`)
	assert.NotContains(t, rest, `"A"`)
	assert.NotContains(t, in.Content, QuizSentinel)
	assert.NotContains(t, in.Content, `"answers"`)
	assert.Contains(t, in.Content, "Never quote")
	assert.Contains(t, in.Content, "**Your skin type:**")
}

func TestParseInboundQuizAnswers(t *testing.T) {
	in := parseInbound(QuizSentinel+` {"answers":[
		{"question":"How does your skin feel by noon?","answer":"Shiny on the forehead"},
		{"question":"","answer":"skipped"},
		{"question":"Do you break out?","answer":"  "}
	]}`, "u1")
	assert.Equal(t, 1, strings.Count(in.Content, "Shiny on the forehead"))
	assert.NotContains(t, outsideAnswers(t, in.Content), "Shiny on the forehead")
	assert.NotContains(t, in.Content, "skipped")
	assert.Contains(t, in.Content, "Customer userId: u1")
}

func TestParseInboundQuizFailuresDegrade(t *testing.T) {
	for _, payload := range []string{"{not json", `{"answers":[]}`, `{"answers":[{"question":"Q"}]}`, ""} {
		in := parseInbound(QuizSentinel+payload, "u1")
		assert.Equal(t, RoleSystem, in.Role, payload)
		assert.Empty(t, in.Content, payload)
	}
}
