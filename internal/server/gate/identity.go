package gate

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownIdentity     = errors.New("unknown identity")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidIdentityName = errors.New("invalid identity name")
)

// Identity is loaded from <identities_dir>/<name>.yaml. It is never mutated
// after loading; a cached pointer may be shared by concurrent requests.
type Identity struct {
	Name         string   `yaml:"name"`
	PasswordHash string   `yaml:"password_hash"`
	Include      []string `yaml:"include"`
	Exclude      []string `yaml:"exclude"`
	Superuser    bool     `yaml:"superuser"`

	include mapset.Set[string]
	exclude mapset.Set[string]
}

func newIdentity(name string) *Identity {
	id := &Identity{Name: name}
	id.build()
	return id
}

func (id *Identity) build() {
	id.include = mapset.NewThreadUnsafeSet(id.Include...)
	id.exclude = mapset.NewThreadUnsafeSet(id.Exclude...)
}

// CanAccess reports whether the identity may read or write the game.
func (id *Identity) CanAccess(game string) bool {
	if id.Superuser {
		return true
	}
	if id.include.Cardinality() > 0 && !id.include.Contains(game) {
		return false
	}
	if id.exclude.Cardinality() > 0 && id.exclude.Contains(game) {
		return false
	}
	return true
}

// FilterGames keeps the games the identity can access, in order.
func (id *Identity) FilterGames(games []string) []string {
	out := make([]string, 0, len(games))
	for _, g := range games {
		if id.CanAccess(g) {
			out = append(out, g)
		}
	}
	return out
}

// IdentityStore reads identity records and caches them for a short TTL so
// edits on disk are picked up without a restart.
type IdentityStore struct {
	dir   string
	cache *expirable.LRU[string, *Identity]
}

func NewIdentityStore(dir string, ttl time.Duration) *IdentityStore {
	if ttl <= 0 {
		ttl = DefaultIdentityCacheTTL
	}
	return &IdentityStore{
		dir:   dir,
		cache: expirable.NewLRU[string, *Identity](256, nil, ttl),
	}
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}

// Lookup returns the named identity.
func (s *IdentityStore) Lookup(name string) (*Identity, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentityName, name)
	}
	if id, ok := s.cache.Get(name); ok {
		return id, nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name+".yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, name)
	} else if err != nil {
		return nil, fmt.Errorf("read identity %s: %w", name, err)
	}

	id, err := decodeIdentity(data)
	if err != nil {
		return nil, fmt.Errorf("identity %s: %w", name, err)
	}
	if id.Name == "" {
		id.Name = name
	} else if id.Name != name {
		return nil, fmt.Errorf("identity %s: record names %q", name, id.Name)
	}

	s.cache.Add(name, id)
	return id, nil
}

// Verify checks a password against the identity's bcrypt hash.
func (s *IdentityStore) Verify(name, password string) (*Identity, error) {
	id, err := s.Lookup(name)
	if err != nil {
		return nil, err
	}
	if id.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(id.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return id, nil
}

func decodeIdentity(data []byte) (*Identity, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var id Identity
	if err := dec.Decode(&id); err != nil {
		return nil, err
	}
	id.build()
	return &id, nil
}

// HashPassword returns a bcrypt hash for an identity record.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
