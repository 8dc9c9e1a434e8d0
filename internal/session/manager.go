package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const CookieName = "consultancy_session"

type contextKey string

const (
	stateKey contextKey = "session_state"
	idKey    contextKey = "session_id"
)

// Manager ties the session cookie to a Store and exposes the current
// State to handlers through the request context.
type Manager struct {
	store  Store
	ttl    time.Duration
	secure bool
	logger zerolog.Logger

	mu       sync.RWMutex
	onLogout []func(sessionID string)
}

func NewManager(store Store, ttl time.Duration, secure bool, logger zerolog.Logger) *Manager {
	return &Manager{store: store, ttl: ttl, secure: secure, logger: logger}
}

// OnLogout registers fn to run after a session is destroyed.
func (m *Manager) OnLogout(fn func(sessionID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLogout = append(m.onLogout, fn)
}

// Middleware loads the session named by the cookie. Unknown or expired ids
// are treated as logged out.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := LoggedOut()
		var id string

		if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
			u, err := m.store.Get(r.Context(), c.Value)
			switch {
			case err == nil:
				state = LoggedIn(u)
				id = c.Value
			case errors.Is(err, ErrNotFound):
				m.clearCookie(w)
			default:
				m.logger.Warn().Err(err).Msg("load session")
			}
		}

		ctx := context.WithValue(r.Context(), stateKey, state)
		ctx = context.WithValue(ctx, idKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func FromContext(ctx context.Context) State {
	if s, ok := ctx.Value(stateKey).(State); ok {
		return s
	}
	return LoggedOut()
}

func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(idKey).(string); ok {
		return id
	}
	return ""
}

// Login replaces whatever session the request carried with a fresh one.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, u User) (string, error) {
	if old := SessionIDFromContext(r.Context()); old != "" {
		m.destroy(r.Context(), old)
	}

	id := generateSessionID()
	if err := m.store.Save(r.Context(), id, u); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

// Logout clears the session. It is a no-op for logged out requests.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	if id := SessionIDFromContext(r.Context()); id != "" {
		m.destroy(r.Context(), id)
	}
	m.clearCookie(w)
}

func (m *Manager) destroy(ctx context.Context, id string) {
	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Warn().Err(err).Msg("delete session")
	}

	m.mu.RLock()
	hooks := append([]func(string){}, m.onLogout...)
	m.mu.RUnlock()
	for _, fn := range hooks {
		fn(id)
	}
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireRole guards a route. Logged out requests are redirected to
// loginPath, or get 401 when loginPath is empty. A logged in user without
// one of roles gets 403.
func RequireRole(loginPath string, roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := FromContext(r.Context())
			if !state.IsLoggedIn() {
				if loginPath == "" {
					http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
					return
				}
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			if len(roles) > 0 && !state.HasRole(roles...) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func generateSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}
