package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/skinsense/ai/core/llm"
	"github.com/hrygo/skinsense/ai/internal/strutil"
)

// Chatter is the plain completion call the summarizer needs.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// lineMaxRunes caps each transcript line sent to the model.
const lineMaxRunes = 500

type llmSummarizer struct {
	llm     Chatter
	timeout time.Duration
}

// NewSummarizer creates an LLM-backed summarizer. A nil chatter always uses
// the extractive fallback.
func NewSummarizer(chatter Chatter) Summarizer {
	return &llmSummarizer{
		llm:     chatter,
		timeout: 15 * time.Second,
	}
}

func (s *llmSummarizer) Summarize(ctx context.Context, req *SummarizeRequest) (*SummarizeResponse, error) {
	if len(req.Lines) == 0 {
		return &SummarizeResponse{Summary: req.Previous, Source: "previous"}, nil
	}
	if s.llm == nil {
		return FallbackSummarize(req)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content, err := s.llm.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: summarySystemPrompt},
		{Role: llm.RoleUser, Content: buildPrompt(req)},
	})
	if err != nil {
		slog.Warn("summary: llm failed, using fallback", "session_id", req.SessionID, "error", err)
		return FallbackSummarize(req)
	}

	summary := parseSummary(content)
	if summary == "" {
		return FallbackSummarize(req)
	}
	return &SummarizeResponse{
		Summary: strutil.Clip(summary, maxLen(req)),
		Source:  "llm",
	}, nil
}

func buildPrompt(req *SummarizeRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Update the conversation summary in at most %d characters.\n\n", maxLen(req))
	if req.Previous != "" {
		sb.WriteString("Current summary:\n")
		sb.WriteString(req.Previous)
		sb.WriteString("\n\n")
	}
	sb.WriteString("New messages:\n")
	for _, line := range req.Lines {
		fmt.Fprintf(&sb, "[%s]: %s\n", line.Role, strutil.Truncate(line.Content, lineMaxRunes))
	}
	sb.WriteString("\nReply with JSON only: {\"summary\": \"...\"}")
	return sb.String()
}

func parseSummary(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var result struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return strings.TrimSpace(result.Summary)
	}
	return content
}

const summarySystemPrompt = `You maintain a running summary of a skincare shopping conversation.

Rules:
1. Keep the customer's skin type, concerns, budget, allergies and products they liked or rejected
2. Keep products and routines that were recommended, by name
3. Drop greetings and small talk
4. Do not invent facts that are not in the messages
5. Write in the customer's language`
