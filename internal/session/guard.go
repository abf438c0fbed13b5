package session

import (
	"context"
	"sync"
	"time"

	"brainsync-client/internal/apperr"
	"brainsync-client/internal/pkg/logger"
)

// Session is a read-only view of the guard. Identity is derived from Token on every read.
type Session struct {
	Token           string
	Identity        *Identity
	IsAuthenticated bool
}

type Listener func(Session)

// Guard owns the bearer token. It is constructed explicitly and shared by reference.
type Guard struct {
	mu        sync.RWMutex
	token     string
	store     TokenStore
	logger    logger.ILogger
	now       func() time.Time
	listeners map[int]Listener
	nextId    int
}

type GuardOption func(*Guard)

func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		g.now = now
	}
}

func NewGuard(store TokenStore, log logger.ILogger, opts ...GuardOption) *Guard {
	g := &Guard{
		store:     store,
		logger:    log,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) CurrentToken() (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token, g.token != ""
}

func (g *Guard) IsAuthenticated() bool {
	_, ok := g.CurrentToken()
	return ok
}

func (g *Guard) Identity() (*Identity, bool) {
	token, ok := g.CurrentToken()
	if !ok {
		return nil, false
	}
	id, err := DecodeToken(token)
	if err != nil {
		return nil, false
	}
	return id, true
}

func (g *Guard) Session() Session {
	token, ok := g.CurrentToken()
	s := Session{Token: token, IsAuthenticated: ok}
	if ok {
		s.Identity, _ = DecodeToken(token)
	}
	return s
}

// RequireAuth is the private-route check: protected operations call it before any request.
func (g *Guard) RequireAuth() error {
	if !g.IsAuthenticated() {
		return apperr.NewAuth("login required")
	}
	return nil
}

// SetSession installs a freshly issued token. A token whose claims cannot be decoded,
// or that is already expired, leaves the guard cleared.
func (g *Guard) SetSession(ctx context.Context, token string) error {
	id, err := DecodeToken(token)
	if err == nil && id.Expired(g.now()) {
		err = invalidToken(errExpired)
	}
	if err != nil {
		g.logger.Warn("SessionGuard", "Rejected session token", map[string]interface{}{
			"error": err.Error(),
		})
		g.ClearSession(ctx)
		return err
	}

	g.mu.Lock()
	g.token = token
	g.mu.Unlock()

	if err := g.store.Save(ctx, StorageKey, token); err != nil {
		// The in-memory session is still valid; only persistence failed.
		g.logger.Error("SessionGuard", "Failed to persist token", map[string]interface{}{
			"error": err.Error(),
		})
	}

	g.logger.Info("SessionGuard", "Session established", map[string]interface{}{
		"user_id": id.UserId,
	})
	g.notify()
	return nil
}

// ClearSession drops the token and its persisted copy. Calling it on a cleared guard
// still removes any stale persisted value but does not notify listeners again.
func (g *Guard) ClearSession(ctx context.Context) {
	g.mu.Lock()
	hadToken := g.token != ""
	g.token = ""
	g.mu.Unlock()

	if err := g.store.Delete(ctx, StorageKey); err != nil {
		g.logger.Error("SessionGuard", "Failed to delete persisted token", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if hadToken {
		g.logger.Info("SessionGuard", "Session cleared", nil)
		g.notify()
	}
}

// Restore loads the persisted token at startup. Anything that does not decode, or has
// expired, is deleted and the guard starts cleared.
func (g *Guard) Restore(ctx context.Context) Session {
	token, found, err := g.store.Load(ctx, StorageKey)
	if err != nil {
		g.logger.Warn("SessionGuard", "Could not read persisted token", map[string]interface{}{
			"error": err.Error(),
		})
		g.ClearSession(ctx)
		return g.Session()
	}
	if !found {
		return g.Session()
	}

	id, err := DecodeToken(token)
	if err != nil || id.Expired(g.now()) {
		g.logger.Warn("SessionGuard", "Discarding unusable persisted token", nil)
		g.ClearSession(ctx)
		return g.Session()
	}

	g.mu.Lock()
	g.token = token
	g.mu.Unlock()
	g.notify()
	return g.Session()
}

// OnChange registers fn for every transition between sessions. Listeners run on the
// caller's goroutine, outside the guard's lock.
func (g *Guard) OnChange(fn Listener) (unsubscribe func()) {
	g.mu.Lock()
	id := g.nextId
	g.nextId++
	g.listeners[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

func (g *Guard) notify() {
	g.mu.RLock()
	fns := make([]Listener, 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.RUnlock()

	s := g.Session()
	for _, fn := range fns {
		fn(s)
	}
}
