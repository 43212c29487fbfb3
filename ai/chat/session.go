package chat

import (
	"context"
	"fmt"
	"strings"
)

// resolveSession returns the client's session id unchanged, or creates a new
// session when none was supplied. Existence of a supplied id is not checked.
func resolveSession(ctx context.Context, store ContextStore, req *Request) (string, error) {
	if id := strings.TrimSpace(req.SessionID); id != "" {
		return id, nil
	}
	id, err := store.CreateSession(ctx, req.UserID, req.Config)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}
