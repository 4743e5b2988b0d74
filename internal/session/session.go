// ABOUTME: Persisted login session for one browser namespace
// ABOUTME: Stores {user, expires} as JSON under adminSession and evicts stale entries

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alphasales/assistant-admin/internal/store"
	"github.com/alphasales/assistant-admin/internal/webhook"
)

// Key is the fixed key holding the session inside a namespace
const Key = "adminSession"

// DefaultTTL is how long a login stays valid
const DefaultTTL = 24 * time.Hour

// ErrNoSession is returned when there is no valid session
var ErrNoSession = errors.New("no session")

// Session is the persisted login. Expires is written as epoch milliseconds.
type Session struct {
	User    webhook.User
	Expires time.Time
}

type wireSession struct {
	User    webhook.User `json:"user"`
	Expires int64        `json:"expires"`
}

// MarshalJSON writes {"user": ..., "expires": <unix ms>}.
func (s Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSession{User: s.User, Expires: s.Expires.UnixMilli()})
}

// UnmarshalJSON reads {"user": ..., "expires": <unix ms>}.
func (s *Session) UnmarshalJSON(data []byte) error {
	var w wireSession
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Expires == 0 {
		return errors.New("session has no expiry")
	}
	s.User = w.User
	s.Expires = time.UnixMilli(w.Expires)
	return nil
}

// Valid reports whether the session may still be used at now.
func (s Session) Valid(now time.Time) bool {
	return now.Before(s.Expires)
}

// Store reads and writes the session of one namespace.
type Store struct {
	kv        store.KV
	namespace string
	ttl       time.Duration
	logger    *slog.Logger

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewStore binds a session store to namespace. A zero ttl uses DefaultTTL.
func NewStore(kv store.KV, namespace string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		kv:        kv,
		namespace: namespace,
		ttl:       ttl,
		logger:    slog.Default().With("component", "session", "namespace", namespace),
		Now:       time.Now,
	}
}

// Save persists a new session for user expiring ttl from now.
func (s *Store) Save(ctx context.Context, user webhook.User) (Session, error) {
	sess := Session{User: user, Expires: s.Now().Add(s.ttl)}

	data, err := json.Marshal(sess)
	if err != nil {
		return Session{}, fmt.Errorf("encoding session: %w", err)
	}
	if err := s.kv.Set(ctx, s.namespace, Key, string(data)); err != nil {
		return Session{}, fmt.Errorf("saving session: %w", err)
	}

	s.logger.Info("session saved", "user_id", user.ID, "expires", sess.Expires)
	return sess, nil
}

// Load returns the stored session. Expired or unreadable entries are removed
// and reported as ErrNoSession.
func (s *Store) Load(ctx context.Context) (Session, error) {
	raw, err := s.kv.Get(ctx, s.namespace, Key)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("loading session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.logger.Warn("discarding unreadable session", "error", err)
		s.evict(ctx)
		return Session{}, ErrNoSession
	}

	if !sess.Valid(s.Now()) {
		s.logger.Info("session expired", "user_id", sess.User.ID, "expires", sess.Expires)
		s.evict(ctx)
		return Session{}, ErrNoSession
	}

	return sess, nil
}

// Clear removes the stored session.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.namespace, Key); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// Clock returns the current time on the store's clock.
func (s *Store) Clock() time.Time {
	return s.Now()
}

func (s *Store) evict(ctx context.Context) {
	if err := s.kv.Delete(ctx, s.namespace, Key); err != nil {
		s.logger.Warn("failed to evict session", "error", err)
	}
}
