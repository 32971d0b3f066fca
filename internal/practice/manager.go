package practice

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/act-prep/backend/internal/models"
	"github.com/google/uuid"
)

// Session is one open practice session.
type Session struct {
	ID     string
	UserID int64

	ctrl     *Controller
	lastUsed time.Time
}

func (s *Session) Controller() *Controller { return s.ctrl }

// View is the controller snapshot tagged with the session ID.
func (s *Session) View() models.SessionView {
	v := s.ctrl.Snapshot()
	v.ID = s.ID
	return v
}

// Manager owns the open sessions of every user.
type Manager struct {
	progress  ProgressStore
	questions QuestionSource
	catalog   CatalogSource
	opts      []Option

	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(progress ProgressStore, questions QuestionSource, cat CatalogSource, idleTimeout time.Duration, opts ...Option) *Manager {
	return &Manager{
		progress:    progress,
		questions:   questions,
		catalog:     cat,
		opts:        opts,
		idleTimeout: idleTimeout,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

// Open starts a controller for subject. A session whose first question could
// not be fetched is still opened, in the unavailable state.
func (m *Manager) Open(ctx context.Context, userID int64, subject models.Subject) (*Session, error) {
	ctrl := NewController(userID, m.progress, m.questions, m.catalog, m.opts...)
	if err := ctrl.Start(ctx, subject); err != nil && !errors.Is(err, ErrQuestionUnavailable) {
		ctrl.Close()
		return nil, err
	}

	sess := &Session{ID: uuid.NewString(), UserID: userID, ctrl: ctrl}

	m.mu.Lock()
	sess.lastUsed = m.now()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	log.Printf("[practice] user %d opened session %s for %s", userID, sess.ID, subject)
	return sess, nil
}

// Get returns the session if it exists and belongs to userID.
func (m *Manager) Get(userID int64, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok || sess.UserID != userID {
		return nil, ErrSessionNotFound
	}
	sess.lastUsed = m.now()
	return sess, nil
}

// Close stops the session's timer and forgets it.
func (m *Manager) Close(userID int64, id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok || sess.UserID != userID {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	sess.ctrl.Close()
	return nil
}

// EvictIdle closes sessions unused for longer than the idle timeout and
// returns how many were closed.
func (m *Manager) EvictIdle() int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.Lock()
	var stale []*Session
	for id, sess := range m.sessions {
		if sess.lastUsed.Before(cutoff) {
			stale = append(stale, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range stale {
		sess.ctrl.Close()
	}
	return len(stale)
}

// Len reports the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RunEviction evicts idle sessions every interval until ctx is done, then
// closes everything still open.
func (m *Manager) RunEviction(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			if n := m.EvictIdle(); n > 0 {
				log.Printf("[practice] evicted %d idle sessions", n)
			}
		}
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range all {
		sess.ctrl.Close()
	}
}

// Preview runs the selector for a subject without opening a session.
func (m *Manager) Preview(ctx context.Context, userID int64, subject models.Subject, standards, levels []string) (*models.SelectionResponse, error) {
	idx := m.catalog.Current()
	if _, err := idx.Subject(subject); err != nil {
		return nil, err
	}
	progress, err := m.progress.Load(ctx, userID, subject)
	if err != nil {
		return nil, err
	}

	resp := &models.SelectionResponse{Subject: subject}
	id, found := SelectNext(idx, Query{
		Subject:   subject,
		StartID:   progress.ResumePointer,
		Attempted: progress.AttemptedIDs(),
		Standards: standards,
		Levels:    levels,
	})
	if found {
		resp.QuestionID = &id
	} else {
		resp.Exhausted = true
	}
	return resp, nil
}
