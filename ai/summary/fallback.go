package summary

import (
	"strings"
	"unicode/utf8"

	"github.com/hrygo/skinsense/ai/internal/strutil"
)

// FallbackSummarize builds an extractive summary: the previous summary
// followed by the first sentence of every customer message. The oldest
// lines are dropped first when the result is too long.
func FallbackSummarize(req *SummarizeRequest) (*SummarizeResponse, error) {
	limit := maxLen(req)

	var lines []string
	if prev := strings.TrimSpace(req.Previous); prev != "" {
		lines = append(lines, prev)
	}
	for _, l := range req.Lines {
		if l.Role != "user" {
			continue
		}
		if sentence := extractFirstSentence(l.Content); sentence != "" {
			lines = append(lines, "Customer: "+sentence)
		}
	}

	for len(lines) > 1 && utf8.RuneCountInString(strings.Join(lines, "\n")) > limit {
		lines = lines[1:]
	}
	return &SummarizeResponse{
		Summary: strutil.Clip(strings.Join(lines, "\n"), limit),
		Source:  "fallback",
	}, nil
}

// extractFirstParagraph returns the first non-blank line.
func extractFirstParagraph(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// extractFirstSentence returns the first sentence of the first paragraph.
// ASCII terminators only count when followed by a space or the line end, so
// "0.5%" and "e.g" do not split a sentence.
func extractFirstSentence(content string) string {
	firstLine := extractFirstParagraph(content)
	for i, r := range firstLine {
		next := i + utf8.RuneLen(r)
		switch r {
		case '？', '！', '。':
			return firstLine[:next]
		case '?', '!', '.':
			if next == len(firstLine) || firstLine[next] == ' ' {
				return firstLine[:next]
			}
		}
	}
	return firstLine
}
