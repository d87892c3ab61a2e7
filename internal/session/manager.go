package session

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type ManagerOptions struct {
	IdleTimeout     time.Duration
	AbsoluteTimeout time.Duration
	Cookie          CookieOptions
}

// Manager owns the session lifecycle: creation, sliding expiry, rotation
// and destruction. A session returned by New lives only in memory until
// it is saved.
type Manager struct {
	store Store
	opts  ManagerOptions
	now   func() time.Time
}

func NewManager(store Store, opts ManagerOptions) *Manager {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 24 * time.Hour
	}
	if opts.AbsoluteTimeout < opts.IdleTimeout {
		opts.AbsoluteTimeout = opts.IdleTimeout
	}
	opts.Cookie = opts.Cookie.withDefaults()

	return &Manager{
		store: store,
		opts:  opts,
		now:   time.Now,
	}
}

func (m *Manager) CookieName() string {
	return m.opts.Cookie.Name
}

// Load returns the live session for id. Unknown and expired sessions
// yield (nil, nil); expired ones are removed from the store.
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	if !ValidID(id) {
		return nil, nil
	}

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	if s == nil {
		return nil, nil
	}

	now := m.now()
	if !now.Before(s.ExpiresAt) || !now.Before(s.AbsoluteExpiresAt) {
		_ = m.store.Delete(ctx, id)
		return nil, nil
	}

	s.persisted = true
	return s, nil
}

// LoadRequest loads the session named by the request's session cookie.
func (m *Manager) LoadRequest(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.opts.Cookie.Name)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	return m.Load(r.Context(), cookie.Value)
}

// New returns a fresh anonymous session that is not yet stored.
func (m *Manager) New() (*Session, error) {
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	now := m.now()
	s := &Session{
		SessionID:         id,
		CreatedAt:         now,
		AbsoluteExpiresAt: now.Add(m.opts.AbsoluteTimeout),
	}
	m.slide(s)
	return s, nil
}

// Save stores s, creating it on first save, and slides its idle expiry.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	m.slide(s)

	if s.persisted {
		if err := m.store.Update(ctx, *s); err != nil {
			return fmt.Errorf("session: update: %w", err)
		}
		return nil
	}

	if err := m.store.Create(ctx, *s); err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	s.persisted = true
	return nil
}

// Touch extends a stored session's idle expiry. Sessions that were never
// saved are left alone.
func (m *Manager) Touch(ctx context.Context, s *Session) error {
	if !s.Persisted() {
		return nil
	}
	return m.Save(ctx, s)
}

// Rotate replaces old with a new, unsaved anonymous session under a fresh
// id. The old record is deleted. old may be nil.
func (m *Manager) Rotate(ctx context.Context, old *Session) (*Session, error) {
	if old.Persisted() {
		if err := m.store.Delete(ctx, old.SessionID); err != nil {
			return nil, fmt.Errorf("session: rotate: %w", err)
		}
		old.persisted = false
	}
	return m.New()
}

// Destroy deletes s from the store.
func (m *Manager) Destroy(ctx context.Context, s *Session) error {
	if !s.Persisted() {
		return nil
	}
	if err := m.store.Delete(ctx, s.SessionID); err != nil {
		return fmt.Errorf("session: destroy: %w", err)
	}
	s.persisted = false
	return nil
}

// WriteCookie issues the cookie for s. Idle expiry is enforced server side,
// so the cookie itself lives until the absolute expiry.
func (m *Manager) WriteCookie(w http.ResponseWriter, s *Session) {
	SetCookie(w, s.SessionID, s.AbsoluteExpiresAt, m.opts.Cookie)
}

func (m *Manager) ClearCookie(w http.ResponseWriter) {
	ClearCookie(w, m.opts.Cookie)
}

func (m *Manager) slide(s *Session) {
	exp := m.now().Add(m.opts.IdleTimeout)
	if exp.After(s.AbsoluteExpiresAt) {
		exp = s.AbsoluteExpiresAt
	}
	s.ExpiresAt = exp
}
