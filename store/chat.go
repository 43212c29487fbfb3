package store

// ChatSession is one conversation owned by the context store.
type ChatSession struct {
	UID    string
	UserID string
	// Config is the client-supplied session config as a JSON object.
	Config    string
	CreatedTs int64
	UpdatedTs int64
	ID        int64
}

type FindChatSession struct {
	UID *string
}

// ChatMessage is one stored conversation turn. Tool messages carry a JSON
// envelope in Content.
type ChatMessage struct {
	SessionUID string
	Role       string
	Content    string
	CreatedTs  int64
	ID         int64
}

type FindChatMessage struct {
	SessionUID string
	// AfterID limits the result to messages newer than the given id.
	AfterID int64
	// Limit keeps only the newest N messages. Zero means no limit.
	Limit int
}

// ChatSummary is the rolling summary of a session. LastMessageID is the
// newest message folded into Content.
type ChatSummary struct {
	SessionUID    string
	Content       string
	LastMessageID int64
	UpdatedTs     int64
}
