// Package summary condenses a conversation transcript into a rolling summary.
package summary

import (
	"context"
)

// Summarizer folds new conversation lines into a previous summary.
type Summarizer interface {
	Summarize(ctx context.Context, req *SummarizeRequest) (*SummarizeResponse, error)
}

// Line is one transcript entry.
type Line struct {
	Role    string
	Content string
}

// SummarizeRequest is one summary update.
type SummarizeRequest struct {
	SessionID string
	// Previous is the summary produced by the last update, if any.
	Previous string
	Lines    []Line
	MaxLen   int // max summary length in runes, default 600
}

// SummarizeResponse carries the new summary.
type SummarizeResponse struct {
	Summary string
	Source  string // "llm" | "fallback"
}

const defaultMaxLen = 600

func maxLen(req *SummarizeRequest) int {
	if req.MaxLen <= 0 {
		return defaultMaxLen
	}
	return req.MaxLen
}
