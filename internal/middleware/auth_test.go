package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/debapps/WebAuthSecurity/internal/auth"
	"github.com/debapps/WebAuthSecurity/internal/logger"
	"github.com/debapps/WebAuthSecurity/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentities struct {
	users map[string]*auth.User
	err   error
}

func (f *fakeIdentities) CurrentIdentity(_ context.Context, sess *session.Session) (*auth.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if !sess.Authenticated() {
		return nil, nil
	}
	return f.users[sess.UserID], nil
}

type fixture struct {
	mr       *miniredis.Miniredis
	sessions *session.Manager
	ids      *fakeIdentities
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return &fixture{
		mr: mr,
		sessions: session.NewManager(session.NewRedisStore(rdb), session.ManagerOptions{
			IdleTimeout:     time.Hour,
			AbsoluteTimeout: 24 * time.Hour,
		}),
		ids: &fakeIdentities{users: map[string]*auth.User{"u-1": {ID: "u-1"}}},
	}
}

func (f *fixture) router(saveUninitialized bool) *gin.Engine {
	mw := NewAuthMiddleware(f.sessions, f.ids, saveUninitialized)

	r := gin.New()
	r.Use(GinLoadSession(mw))
	r.GET("/public", func(c *gin.Context) {
		id, ok := UserIDFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": id, "authenticated": ok})
	})
	r.GET("/private", GinRequireAuth(mw), func(c *gin.Context) {
		c.String(http.StatusOK, "secret area")
	})
	r.POST("/private", GinRequireAuth(mw), func(c *gin.Context) {
		c.Status(http.StatusTeapot)
	})
	return r
}

func (f *fixture) sessionCookie(t *testing.T, userID string) *http.Cookie {
	t.Helper()

	s, err := f.sessions.New()
	require.NoError(t, err)
	s.UserID = userID
	require.NoError(t, f.sessions.Save(context.Background(), s))

	return &http.Cookie{Name: f.sessions.CookieName(), Value: s.SessionID}
}

func TestRequireAuth_AnonymousRedirectsToLogin(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.router(false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Empty(t, rec.Result().Cookies(), "no session is created for anonymous requests")
}

func TestRequireAuth_AuthenticatedPasses(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(f.sessionCookie(t, "u-1"))

	rec := httptest.NewRecorder()
	f.router(false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "secret area", rec.Body.String())
}

func TestLoadSession_UnknownUserIsAnonymous(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(f.sessionCookie(t, "u-gone"))

	rec := httptest.NewRecorder()
	f.router(false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestLoadSession_StaleCookieIsCleared(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.AddCookie(&http.Cookie{Name: f.sessions.CookieName(), Value: "does-not-exist"})

	rec := httptest.NewRecorder()
	f.router(false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestLoadSession_SaveUninitialized(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.router(true).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/public", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.True(t, f.mr.Exists("session:"+cookies[0].Value))
}

func TestLoadSession_StoreUnavailable(t *testing.T) {
	f := newFixture(t)
	cookie := f.sessionCookie(t, "u-1")
	f.mr.Close()

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.AddCookie(cookie)

	rec := httptest.NewRecorder()
	f.router(false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLoadSession_IdentityLookupFails(t *testing.T) {
	f := newFixture(t)
	f.ids.err = auth.ErrStoreUnavailable

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.AddCookie(f.sessionCookie(t, "u-1"))

	rec := httptest.NewRecorder()
	f.router(false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestLogger_OmitsQuery(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	prev := logger.Logger()
	logger.Use(logger.New(&buf, "info", "json"))
	t.Cleanup(func() { logger.Use(prev) })

	r := f.router(false)
	r.Use(RequestLogger())
	r.GET("/auth/google/secrets", func(c *gin.Context) { c.Status(http.StatusFound) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/secrets?code=4/0Ab&state=xyz", nil))

	assert.Contains(t, buf.String(), `"path":"/auth/google/secrets"`)
	assert.NotContains(t, buf.String(), "4/0Ab")
}

func TestRequireAuth_AnonymousPostNeverReachesHandler(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/private", nil)
	rec := httptest.NewRecorder()
	f.router(false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRequireAuth_AuthenticatedPostReachesHandler(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/private", nil)
	req.AddCookie(f.sessionCookie(t, "u-1"))
	rec := httptest.NewRecorder()
	f.router(false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestGin_AbortsWhenNextIsNotCalled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reached := false
	block := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}

	r := gin.New()
	r.POST("/x", Gin(block), func(c *gin.Context) { reached = true })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))

	assert.False(t, reached)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
