// Package gate resolves request credentials to an identity and decides which
// games that identity may touch.
package gate

import (
	"errors"
	"log/slog"
	"net/http"
)

var ErrUnauthenticated = errors.New("no session, credentials or default identity")

// Binding is the outcome of resolving a request.
type Binding struct {
	Identity *Identity
	Session  *Session
	// Minted is set when Session was created for this request and the
	// cookie has to be sent back.
	Minted bool
}

type Gate struct {
	config     *Config
	identities *IdentityStore
	sessions   *SessionTable
}

func New(config *Config) *Gate {
	return &Gate{
		config:     config,
		identities: NewIdentityStore(config.IdentitiesDir, config.IdentityCacheTTL),
		sessions:   NewSessionTable(config.SessionIdleTimeout),
	}
}

func (g *Gate) CookieName() string {
	return g.config.CookieName
}

func (g *Gate) Identities() *IdentityStore {
	return g.identities
}

func (g *Gate) Sessions() *SessionTable {
	return g.sessions
}

// Bind resolves r in order: session cookie, inline Basic credentials, then
// the default identity. A session is minted only when the cookie did not
// resolve. Every call re-arms the idle clear.
func (g *Gate) Bind(r *http.Request) (*Binding, error) {
	g.sessions.Touch()

	if c, err := r.Cookie(g.config.CookieName); err == nil {
		if s, ok := g.sessions.Lookup(c.Value); ok {
			return &Binding{Identity: s.Identity, Session: s}, nil
		}
	}

	identity, err := g.resolve(r)
	if err != nil {
		return nil, err
	}
	s := g.sessions.Create(identity)
	return &Binding{Identity: identity, Session: s, Minted: true}, nil
}

func (g *Gate) resolve(r *http.Request) (*Identity, error) {
	if user, pass, ok := r.BasicAuth(); ok {
		id, err := g.identities.Verify(user, pass)
		if err == nil {
			return id, nil
		}
		slog.Warn("gate credentials rejected", "user", user, "error", err)
	}
	return g.defaultIdentity()
}

// defaultIdentity loads the configured default. A configured name with no
// record on disk acts as a superuser.
func (g *Gate) defaultIdentity() (*Identity, error) {
	name := g.config.DefaultIdentity
	if name == "" {
		return nil, ErrUnauthenticated
	}
	id, err := g.identities.Lookup(name)
	if errors.Is(err, ErrUnknownIdentity) {
		id = newIdentity(name)
		id.Superuser = true
		return id, nil
	}
	return id, err
}

// Shutdown stops the idle timer.
func (g *Gate) Shutdown() {
	g.sessions.Stop()
}
