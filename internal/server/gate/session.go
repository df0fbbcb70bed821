package gate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID       string
	Identity *Identity
}

// SessionTable maps cookie ids to identities. Expiry is coarse: every
// request re-arms a single idle timer and when it fires the whole table is
// dropped.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idle     time.Duration
	timer    *time.Timer
	gen      uint64
}

func NewSessionTable(idle time.Duration) *SessionTable {
	if idle <= 0 {
		idle = DefaultSessionIdleTimeout
	}
	return &SessionTable{
		sessions: make(map[string]*Session),
		idle:     idle,
	}
}

func (t *SessionTable) Lookup(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}

// Create mints a session bound to identity.
func (t *SessionTable) Create(identity *Identity) *Session {
	s := &Session{ID: uuid.NewString(), Identity: identity}
	t.mu.Lock()
	t.sessions[s.ID] = s
	t.mu.Unlock()
	return s
}

// Touch cancels the pending idle clear and schedules a new one.
func (t *SessionTable) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.idle, func() { t.expire(gen) })
}

// expire clears the table unless a Touch re-armed the timer after this
// callback was scheduled.
func (t *SessionTable) expire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	if n := len(t.sessions); n > 0 {
		slog.Info("sessions idle, clearing", "count", n)
	}
	t.sessions = make(map[string]*Session)
	t.timer = nil
}

func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Stop cancels the pending idle clear.
func (t *SessionTable) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}
