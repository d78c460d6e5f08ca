// Package session manages the active chat session and its message log.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joss/aiko/internal/domain"
)

// Manager owns the current session and appends messages to it. Observers
// receive every appended message, used by UIs to refresh without polling.
type Manager struct {
	store domain.Store

	mu        sync.Mutex
	current   *domain.Session
	observers []chan *domain.ChatMessage
}

func NewManager(store domain.Store) *Manager {
	return &Manager{store: store}
}

// GetOrCreateActive returns the most recent unarchived session, creating
// one when none exists.
func (m *Manager) GetOrCreateActive(ctx context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return m.current, nil
	}

	sess, err := m.store.ActiveSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active session: %w", err)
	}
	if sess == nil {
		sess, err = m.createLocked(ctx)
		if err != nil {
			return nil, err
		}
	}
	m.current = sess
	return sess, nil
}

// StartNew archives the current session and begins a fresh one.
func (m *Manager) StartNew(ctx context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if err := m.store.ArchiveSession(ctx, m.current.ID); err != nil {
			return nil, fmt.Errorf("archive session: %w", err)
		}
	}
	sess, err := m.createLocked(ctx)
	if err != nil {
		return nil, err
	}
	m.current = sess
	return sess, nil
}

func (m *Manager) createLocked(ctx context.Context) (*domain.Session, error) {
	now := time.Now().UTC()
	sess := &domain.Session{
		ID:        ulid.Make().String(),
		Title:     now.Format("2006-01-02 15:04"),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Append stores msg in the current session, assigning an ID and timestamp
// when missing, and notifies observers.
func (m *Manager) Append(ctx context.Context, msg *domain.ChatMessage) error {
	sess, err := m.GetOrCreateActive(ctx)
	if err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.SessionID == "" {
		msg.SessionID = sess.ID
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if err := m.store.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	m.mu.Lock()
	observers := make([]chan *domain.ChatMessage, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()
	for _, ch := range observers {
		select {
		case ch <- msg:
		default: // slow observer, drop rather than block the turn
		}
	}
	return nil
}

// Recent returns up to limit messages of the current session, oldest first.
func (m *Manager) Recent(ctx context.Context, limit int) ([]*domain.ChatMessage, error) {
	sess, err := m.GetOrCreateActive(ctx)
	if err != nil {
		return nil, err
	}
	return m.store.RecentMessages(ctx, sess.ID, limit)
}

// Count returns the number of messages in the current session.
func (m *Manager) Count(ctx context.Context) (int, error) {
	sess, err := m.GetOrCreateActive(ctx)
	if err != nil {
		return 0, err
	}
	return m.store.MessageCount(ctx, sess.ID)
}

// Observe registers a buffered channel that receives appended messages.
func (m *Manager) Observe() <-chan *domain.ChatMessage {
	ch := make(chan *domain.ChatMessage, 64)
	m.mu.Lock()
	m.observers = append(m.observers, ch)
	m.mu.Unlock()
	return ch
}
