package gate

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func writeIdentity(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o644))
}

func newTestGate(t *testing.T, defaultIdentity string) (*Gate, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &Config{IdentitiesDir: dir, DefaultIdentity: defaultIdentity}
	require.NoError(t, cfg.Validate())
	g := New(cfg)
	t.Cleanup(g.Shutdown)
	return g, dir
}

func TestBindDefaultIdentityCookieRoundTrip(t *testing.T) {
	g, dir := newTestGate(t, "guest")
	writeIdentity(t, dir, "guest", "include: [Hollow]\n")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/games", nil)
	first, err := g.Bind(r)
	require.NoError(t, err)
	assert.True(t, first.Minted)
	assert.Equal(t, "guest", first.Identity.Name)

	// remove the record: presenting the cookie must not re-validate
	require.NoError(t, os.Remove(filepath.Join(dir, "guest.yaml")))

	r = httptest.NewRequest(http.MethodGet, "/api/v1/games", nil)
	r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: first.Session.ID})
	second, err := g.Bind(r)
	require.NoError(t, err)
	assert.False(t, second.Minted)
	assert.Same(t, first.Identity, second.Identity)
	assert.Equal(t, first.Session.ID, second.Session.ID)
	assert.Equal(t, 1, g.Sessions().Len())
}

func TestBindNoDefaultIsUnauthenticated(t *testing.T) {
	g, _ := newTestGate(t, "")

	_, err := g.Bind(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, 0, g.Sessions().Len())
}

func TestBindBasicCredentials(t *testing.T) {
	g, dir := newTestGate(t, "")
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	writeIdentity(t, dir, "alice", "password_hash: "+string(hash)+"\nexclude: [Secret]\n")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.SetBasicAuth("alice", "s3cret")
	b, err := g.Bind(r)
	require.NoError(t, err)
	assert.True(t, b.Minted)
	assert.Equal(t, "alice", b.Identity.Name)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.SetBasicAuth("alice", "wrong")
	_, err = g.Bind(r)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestBindBadCredentialsFallBackToDefault(t *testing.T) {
	g, _ := newTestGate(t, "guest")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.SetBasicAuth("nobody", "x")
	b, err := g.Bind(r)
	require.NoError(t, err)
	assert.Equal(t, "guest", b.Identity.Name)
	// no record on disk: synthesized superuser
	assert.True(t, b.Identity.Superuser)
}

func TestBindStaleCookieMintsNewSession(t *testing.T) {
	g, _ := newTestGate(t, "guest")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "not-a-session"})
	b, err := g.Bind(r)
	require.NoError(t, err)
	assert.True(t, b.Minted)
	assert.NotEqual(t, "not-a-session", b.Session.ID)
}

func TestSessionTableIdleClear(t *testing.T) {
	st := NewSessionTable(50 * time.Millisecond)
	defer st.Stop()

	st.Touch()
	st.Create(newIdentity("a"))
	st.Create(newIdentity("b"))
	assert.Equal(t, 2, st.Len())

	// keep re-arming: nothing is cleared while requests keep coming
	for range 4 {
		time.Sleep(20 * time.Millisecond)
		st.Touch()
	}
	assert.Equal(t, 2, st.Len())

	assert.Eventually(t, func() bool { return st.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestIdentityCanAccess(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		game string
		want bool
	}{
		{"open", "{}", "Any", true},
		{"include-hit", "include: [A, B]", "A", true},
		{"include-miss", "include: [A, B]", "C", false},
		{"exclude-hit", "exclude: [A]", "A", false},
		{"exclude-miss", "exclude: [A]", "B", true},
		{"include-then-exclude", "include: [A, B]\nexclude: [B]", "B", false},
		{"superuser", "superuser: true\ninclude: [A]\nexclude: [B]", "B", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := decodeIdentity([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.CanAccess(tt.game))
		})
	}
}

func TestIdentityStoreLookup(t *testing.T) {
	dir := t.TempDir()
	store := NewIdentityStore(dir, time.Minute)

	_, err := store.Lookup("../etc")
	assert.ErrorIs(t, err, ErrInvalidIdentityName)

	_, err = store.Lookup("ghost")
	assert.ErrorIs(t, err, ErrUnknownIdentity)

	writeIdentity(t, dir, "bob", "name: alice\n")
	_, err = store.Lookup("bob")
	assert.Error(t, err)

	writeIdentity(t, dir, "carol", "bogus_field: 1\n")
	_, err = store.Lookup("carol")
	assert.Error(t, err)

	writeIdentity(t, dir, "dave", "include: [G]\n")
	id, err := store.Lookup("dave")
	require.NoError(t, err)
	assert.Equal(t, "dave", id.Name)
	assert.Equal(t, []string{"G"}, id.FilterGames([]string{"F", "G", "H"}))
}

func TestHashPasswordVerify(t *testing.T) {
	dir := t.TempDir()
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	writeIdentity(t, dir, "eve", "password_hash: "+hash+"\n")

	store := NewIdentityStore(dir, time.Minute)
	_, err = store.Verify("eve", "pw")
	assert.NoError(t, err)
	_, err = store.Verify("eve", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
