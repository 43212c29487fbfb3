// Package conversation stores chat sessions and their message history, and
// keeps a rolling summary so the model context stays bounded.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/hrygo/skinsense/ai/chat"
	"github.com/hrygo/skinsense/ai/filter"
	"github.com/hrygo/skinsense/ai/summary"
	"github.com/hrygo/skinsense/store"
)

const (
	DefaultSummaryThreshold = 12
	DefaultContextWindow    = 20
)

// Service implements chat.ContextStore on top of store.Store.
type Service struct {
	store      *store.Store
	summarizer summary.Summarizer
	threshold  int
	window     int
	// redact masks contact and payment details before they are summarized.
	redact *filter.Filter
	// recompute collapses concurrent summary updates of one session.
	recompute singleflight.Group
}

var _ chat.ContextStore = (*Service)(nil)

// NewService creates a Service. threshold is the number of unsummarized
// messages that triggers a summary; window caps the messages returned by
// GetContext.
func NewService(s *store.Store, summarizer summary.Summarizer, threshold, window int) *Service {
	if threshold <= 0 {
		threshold = DefaultSummaryThreshold
	}
	if window <= 0 {
		window = DefaultContextWindow
	}
	if summarizer == nil {
		summarizer = summary.NewSummarizer(nil)
	}
	return &Service{
		store:      s,
		summarizer: summarizer,
		threshold:  threshold,
		window:     window,
		redact:     filter.Default(),
	}
}

// CreateSession starts a new conversation.
func (s *Service) CreateSession(ctx context.Context, userID string, config map[string]any) (string, error) {
	raw := []byte("{}")
	if len(config) > 0 {
		var err error
		if raw, err = json.Marshal(config); err != nil {
			return "", errors.Wrap(err, "encode session config")
		}
	}
	session, err := s.store.CreateChatSession(ctx, &store.ChatSession{
		UID:    shortuuid.New(),
		UserID: userID,
		Config: string(raw),
	})
	if err != nil {
		return "", err
	}
	return session.UID, nil
}

// AppendMessage stores a message. Unknown session ids are accepted and
// registered on first use, since clients may bring their own.
func (s *Service) AppendMessage(ctx context.Context, sessionID string, role chat.Role, content string) (*chat.AppendResult, error) {
	switch role {
	case chat.RoleUser, chat.RoleAssistant, chat.RoleSystem, chat.RoleTool:
	default:
		return nil, errors.Errorf("unknown role %q", role)
	}
	if _, err := s.store.EnsureChatSession(ctx, &store.ChatSession{UID: sessionID}); err != nil {
		return nil, err
	}
	if _, err := s.store.CreateChatMessage(ctx, &store.ChatMessage{
		SessionUID: sessionID,
		Role:       string(role),
		Content:    content,
	}); err != nil {
		return nil, err
	}

	cutoff, err := s.summaryCutoff(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.CountChatMessagesAfter(ctx, sessionID, cutoff)
	if err != nil {
		return nil, err
	}
	return &chat.AppendResult{NeedsSummary: pending >= s.threshold}, nil
}

// GetContext returns the summary, as a system message, followed by the most
// recent messages that the summary does not cover yet.
func (s *Service) GetContext(ctx context.Context, sessionID string) ([]chat.Message, error) {
	sum, err := s.getSummary(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var cutoff int64
	var out []chat.Message
	if sum != nil {
		cutoff = sum.LastMessageID
		if sum.Content != "" {
			out = append(out, chat.Message{
				Role:      chat.RoleSystem,
				Content:   "Summary of the conversation so far:\n" + sum.Content,
				Timestamp: time.Unix(sum.UpdatedTs, 0),
			})
		}
	}

	list, err := s.store.ListChatMessages(ctx, &store.FindChatMessage{
		SessionUID: sessionID,
		AfterID:    cutoff,
		Limit:      s.window,
	})
	if err != nil {
		return nil, err
	}
	for _, m := range list {
		out = append(out, chat.Message{
			Role:      chat.Role(m.Role),
			Content:   m.Content,
			Timestamp: time.Unix(m.CreatedTs, 0),
		})
	}
	return out, nil
}

// RecomputeSummaries folds every message after the current summary into a
// new one.
func (s *Service) RecomputeSummaries(ctx context.Context, sessionID string) error {
	_, err, _ := s.recompute.Do(sessionID, func() (any, error) {
		return nil, s.recomputeSummary(ctx, sessionID)
	})
	return err
}

func (s *Service) recomputeSummary(ctx context.Context, sessionID string) error {
	prev, err := s.getSummary(ctx, sessionID)
	if err != nil {
		return err
	}
	req := &summary.SummarizeRequest{SessionID: sessionID}
	var cutoff int64
	if prev != nil {
		req.Previous = prev.Content
		cutoff = prev.LastMessageID
	}

	list, err := s.store.ListChatMessages(ctx, &store.FindChatMessage{SessionUID: sessionID, AfterID: cutoff})
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}
	for _, m := range list {
		// Tool envelopes and quiz instructions are not conversation text.
		if m.Role == string(chat.RoleUser) || m.Role == string(chat.RoleAssistant) {
			req.Lines = append(req.Lines, summary.Line{Role: m.Role, Content: s.redact.Redact(m.Content)})
		}
	}

	resp, err := s.summarizer.Summarize(ctx, req)
	if err != nil {
		return fmt.Errorf("summarize session %s: %w", sessionID, err)
	}
	last := list[len(list)-1].ID
	if _, err := s.store.UpsertChatSummary(ctx, &store.ChatSummary{
		SessionUID:    sessionID,
		Content:       resp.Summary,
		LastMessageID: last,
	}); err != nil {
		return err
	}
	slog.Info("conversation summary updated",
		"session_id", sessionID,
		"messages", len(list),
		"source", resp.Source,
	)
	return nil
}

func (s *Service) getSummary(ctx context.Context, sessionID string) (*store.ChatSummary, error) {
	sum, err := s.store.GetChatSummary(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return sum, err
}

func (s *Service) summaryCutoff(ctx context.Context, sessionID string) (int64, error) {
	sum, err := s.getSummary(ctx, sessionID)
	if err != nil || sum == nil {
		return 0, err
	}
	return sum.LastMessageID, nil
}
