package middlewares

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/openmined/gamebox/internal/server/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newGateRouter(t *testing.T, defaultIdentity string) (*gin.Engine, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &gate.Config{IdentitiesDir: dir, DefaultIdentity: defaultIdentity}
	require.NoError(t, cfg.Validate())
	g := gate.New(cfg)
	t.Cleanup(g.Shutdown)

	r := gin.New()
	grp := r.Group("/api", Gate(g))
	grp.GET("/whoami", func(c *gin.Context) {
		id, ok := GetIdentity(c)
		require.True(t, ok)
		c.String(http.StatusOK, id.Name)
	})
	grp.GET("/games/:game", RequireGame(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r, dir
}

func TestGateMintsCookieOnce(t *testing.T) {
	r, _ := newGateRouter(t, "guest")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/whoami", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "guest", w.Body.String())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, gate.DefaultCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Set-Cookie"))
}

func TestGateUnauthorized(t *testing.T) {
	r, _ := newGateRouter(t, "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"E_UNAUTHORIZED"`)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
}

func TestRequireGame(t *testing.T) {
	r, dir := newGateRouter(t, "kid")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kid.yaml"), []byte("exclude: [Gore]\n"), 0o644))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/games/Puzzle", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/games/Gore", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"E_FORBIDDEN"`)
}

func TestRateLimiterBadRate(t *testing.T) {
	_, err := RateLimiter("lots")
	assert.Error(t, err)

	mw, err := RateLimiter("1-M")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/", mw, func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
