package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateVariants(t *testing.T) {
	out := LoggedOut()
	_, ok := out.User()
	assert.False(t, ok)
	assert.False(t, out.IsLoggedIn())
	assert.False(t, out.HasRole(RoleAdmin, RoleUser))

	in := LoggedIn(User{Email: "ana@example.com", Role: RoleAdmin})
	u, ok := in.User()
	require.True(t, ok)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.True(t, in.HasRole(RoleAdmin))
	assert.False(t, in.HasRole(RoleUser))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "ana", User{Email: "a@b.c", Username: "ana"}.DisplayName())
	assert.Equal(t, "a@b.c", User{Email: "a@b.c"}.DisplayName())
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("Admin"))
	assert.Equal(t, RoleUser, ParseRole("user"))
	assert.Equal(t, RoleUser, ParseRole(""))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewRedisStore(rdb, time.Hour)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "abc", User{Email: "ana@example.com", Role: RoleUser}))
	assert.True(t, mr.Exists("session:abc"))
	assert.Equal(t, time.Hour, mr.TTL("session:abc"))

	u, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewRedisStore(rdb, time.Minute)
	require.NoError(t, store.Save(context.Background(), "abc", User{Email: "x@y.z"}))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreReadsDoNotExtendExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewRedisStore(rdb, time.Minute)
	require.NoError(t, store.Save(context.Background(), "abc", User{Email: "x@y.z"}))

	mr.FastForward(40 * time.Second)
	_, err := store.Get(context.Background(), "abc")
	require.NoError(t, err)

	mr.FastForward(30 * time.Second)
	_, err = store.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "id1", User{Email: "a@b.c"}))
	u, err := store.Get(ctx, "id1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", u.Email)

	require.NoError(t, store.Delete(ctx, "id1"))
	_, err = store.Get(ctx, "id1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func newTestManager() *Manager {
	return NewManager(NewMemoryStore(10, time.Hour), time.Hour, false, zerolog.Nop())
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestManagerLoginThenMiddleware(t *testing.T) {
	m := newTestManager()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	id, err := m.Login(rec, req, User{Email: "ana@example.com", Role: RoleUser})
	require.NoError(t, err)

	c := sessionCookie(t, rec)
	assert.Equal(t, id, c.Value)
	assert.True(t, c.HttpOnly)

	var seen State
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		assert.Equal(t, id, SessionIDFromContext(r.Context()))
	}))

	req = httptest.NewRequest(http.MethodGet, "/panel", nil)
	req.AddCookie(c)
	h.ServeHTTP(httptest.NewRecorder(), req)

	u, ok := seen.User()
	require.True(t, ok)
	assert.Equal(t, "ana@example.com", u.Email)
}

func TestMiddlewareUnknownCookieIsLoggedOut(t *testing.T) {
	m := newTestManager()

	var seen State
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "stale"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, seen.IsLoggedIn())
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)
}

func TestLogoutRunsHooksAndClears(t *testing.T) {
	m := newTestManager()

	var torn []string
	m.OnLogout(func(id string) { torn = append(torn, id) })

	rec := httptest.NewRecorder()
	id, err := m.Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), User{Email: "a@b.c"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(sessionCookie(t, rec))

	out := httptest.NewRecorder()
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Logout(w, r)
	})).ServeHTTP(out, req)

	assert.Equal(t, []string{id}, torn)
	assert.Equal(t, -1, sessionCookie(t, out).MaxAge)

	_, err = m.store.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoginRotatesExistingSession(t *testing.T) {
	m := newTestManager()

	first := httptest.NewRecorder()
	oldID, err := m.Login(first, httptest.NewRequest(http.MethodPost, "/login", nil), User{Email: "a@b.c"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
	req.AddCookie(sessionCookie(t, first))

	var newID string
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		newID, err = m.Login(w, r, User{Email: "root@b.c", Role: RoleAdmin})
	})).ServeHTTP(httptest.NewRecorder(), req)

	require.NoError(t, err)
	assert.NotEqual(t, oldID, newID)
	_, err = m.store.Get(context.Background(), oldID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name      string
		state     State
		loginPath string
		wantCode  int
		wantLoc   string
	}{
		{"logged out redirects", LoggedOut(), "/admin/login", http.StatusSeeOther, "/admin/login"},
		{"logged out json", LoggedOut(), "", http.StatusUnauthorized, ""},
		{"wrong role", LoggedIn(User{Email: "a@b.c", Role: RoleUser}), "/admin/login", http.StatusForbidden, ""},
		{"admin passes", LoggedIn(User{Email: "a@b.c", Role: RoleAdmin}), "/admin/login", http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireRole(tt.loginPath, RoleAdmin)(ok)
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req = req.WithContext(context.WithValue(req.Context(), stateKey, tt.state))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			}
		})
	}
}
