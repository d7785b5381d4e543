package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neuroplatform/simforms/pkg/blocks"
	"github.com/neuroplatform/simforms/pkg/render"
)

const sessionCookie = "simforms_session"

const (
	defaultSessionIdle = 2 * time.Hour
	defaultMaxSessions = 10000
	sweepInterval      = time.Minute
)

// Session is the state of one browser. Each endpoint of each API document
// owns its own workspace.
type Session struct {
	ID   string
	CSRF string

	// seen is guarded by the owning store.
	seen time.Time

	mu         sync.Mutex
	token      string
	refreshed  time.Time
	loginState string
	silent     bool
	next       string
	workspaces map[string]*blocks.Workspace
	flashes    map[string]flash
}

// flash carries the outcome of a POST to the page rendered after the
// redirect.
type flash struct {
	fieldErrors map[string][]string
	formErrors  []string
	result      *render.Result
	confirm     bool
}

// Token returns the identity provider access token.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Workspace returns the workspace stored under checksum and path, creating it
// with create on first use. A new document checksum starts fresh workspaces.
func (s *Session) Workspace(checksum, path string, create func() (*blocks.Workspace, error)) (*blocks.Workspace, error) {
	key := checksum + " " + path
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws, ok := s.workspaces[key]; ok {
		return ws, nil
	}
	ws, err := create()
	if err != nil {
		return nil, err
	}
	for stale := range s.workspaces {
		if strings.HasSuffix(stale, " "+path) {
			delete(s.workspaces, stale)
		}
	}
	s.workspaces[key] = ws
	return ws, nil
}

func (s *Session) setFlash(path string, f flash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes[path] = f
}

func (s *Session) takeFlash(path string) (flash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flashes[path]
	delete(s.flashes, path)
	return f, ok
}

// authenticated reports whether the session holds a token younger than
// refresh.
func (s *Session) authenticated(now time.Time, refresh time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return false
	}
	return refresh <= 0 || now.Sub(s.refreshed) < refresh
}

// beginLogin starts a login round trip and returns its state. A session that
// already held a token asks the identity provider for a silent login unless
// interactive is set.
func (s *Session) beginLogin(next string, interactive bool) (state string, silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginState = uuid.NewString()
	s.silent = s.token != "" && !interactive
	if next != "" {
		s.next = safeNext(next)
	}
	return s.loginState, s.silent
}

func (s *Session) completeLogin(state, token string, now time.Time) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == "" || state != s.loginState || token == "" {
		return "", false
	}
	s.loginState = ""
	s.silent = false
	s.token = token
	s.refreshed = now
	next := safeNext(s.next)
	s.next = ""
	return next, true
}

// abortLogin ends a login round trip the identity provider refused. It
// reports whether the refused attempt was silent, in which case the caller
// should retry interactively.
func (s *Session) abortLogin(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == "" || state != s.loginState {
		return false
	}
	s.loginState = ""
	silent := s.silent
	s.silent = false
	return silent
}

// safeNext keeps local paths and replaces anything else with "/".
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return "/"
	}
	return next
}

// StoreOption customises a SessionStore.
type StoreOption func(*SessionStore)

// WithIdleTimeout drops sessions unused for longer than idle.
func WithIdleTimeout(idle time.Duration) StoreOption {
	return func(st *SessionStore) {
		if idle > 0 {
			st.idle = idle
		}
	}
}

// WithMaxSessions caps the store. The least recently used session is evicted
// to make room.
func WithMaxSessions(limit int) StoreOption {
	return func(st *SessionStore) {
		if limit > 0 {
			st.max = limit
		}
	}
}

// WithStoreClock overrides the time source used for idle expiry.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(st *SessionStore) {
		if now != nil {
			st.now = now
		}
	}
}

// SessionStore keeps sessions in memory for a single process.
type SessionStore struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	secure    bool
	idle      time.Duration
	max       int
	now       func() time.Time
	lastSweep time.Time
}

// NewSessionStore returns an empty store. secure marks cookies Secure.
func NewSessionStore(secure bool, opts ...StoreOption) *SessionStore {
	st := &SessionStore{
		sessions: make(map[string]*Session),
		secure:   secure,
		idle:     defaultSessionIdle,
		max:      defaultMaxSessions,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(st)
		}
	}
	return st
}

// Lookup returns the live session named by the request cookie.
func (st *SessionStore) Lookup(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	now := st.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sweepLocked(now)
	session, ok := st.sessions[cookie.Value]
	if !ok {
		return nil, false
	}
	if now.Sub(session.seen) > st.idle {
		delete(st.sessions, session.ID)
		return nil, false
	}
	session.seen = now
	return session, true
}

// Get returns the session named by the request cookie, starting a new one
// and setting the cookie when there is none.
func (st *SessionStore) Get(w http.ResponseWriter, r *http.Request) *Session {
	if session, ok := st.Lookup(r); ok {
		return session
	}

	now := st.now()
	session := &Session{
		ID:         uuid.NewString(),
		CSRF:       uuid.NewString(),
		seen:       now,
		workspaces: make(map[string]*blocks.Workspace),
		flashes:    make(map[string]flash),
	}
	st.mu.Lock()
	st.sweepLocked(now)
	for len(st.sessions) >= st.max {
		st.evictOldestLocked()
	}
	st.sessions[session.ID] = session
	st.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   st.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return session
}

// sweepLocked drops idle sessions, at most once per sweepInterval.
func (st *SessionStore) sweepLocked(now time.Time) {
	if now.Sub(st.lastSweep) < sweepInterval {
		return
	}
	st.lastSweep = now
	for id, session := range st.sessions {
		if now.Sub(session.seen) > st.idle {
			delete(st.sessions, id)
		}
	}
}

func (st *SessionStore) evictOldestLocked() {
	var oldest *Session
	for _, session := range st.sessions {
		if oldest == nil || session.seen.Before(oldest.seen) {
			oldest = session
		}
	}
	if oldest != nil {
		delete(st.sessions, oldest.ID)
	}
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
