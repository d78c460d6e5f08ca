package domain

import "context"

// SessionStore defines session persistence.
// The interface lives in domain so implementations depend inward.
type SessionStore interface {
	CreateSession(ctx context.Context, sess *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ActiveSession(ctx context.Context) (*Session, error) // newest non-archived, nil if none
	ListSessions(ctx context.Context, limit int) ([]*Session, error)
	ArchiveSession(ctx context.Context, id string) error
}

// MessageStore defines message persistence.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *ChatMessage) error
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error) // chronological
	MessageCount(ctx context.Context, sessionID string) (int, error)
}

// AnniversarySink receives anniversary declarations extracted from responses.
type AnniversarySink interface {
	RecordAnniversary(ctx context.Context, a *Anniversary) error
	ListAnniversaries(ctx context.Context) ([]*Anniversary, error)
}

// Store combines everything the conversational core persists.
type Store interface {
	SessionStore
	MessageStore
	AnniversarySink
}
