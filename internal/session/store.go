package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"postulamatch/internal/errors"

	"github.com/google/uuid"
)

// ChatSession is a stateful conversation with the tutor model
type ChatSession interface {
	Send(ctx context.Context, text string) (string, error)
}

// Session guards one State. Transitions are applied under the lock so that
// concurrent requests and background settles never interleave.
type Session struct {
	mu       sync.Mutex
	state    State
	chat     ChatSession
	lastSeen time.Time
	now      func() time.Time
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update applies fn to the current state. The state is replaced only when fn
// returns no error.
func (s *Session) Update(fn func(State) (State, error)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.state)
	if err != nil {
		return s.state, err
	}
	s.state = next
	s.lastSeen = s.now()
	return s.state, nil
}

// SetChat installs the chat handle for the given epoch. A handle for a stale
// epoch is ignored.
func (s *Session) SetChat(epoch uint64, chat ChatSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Epoch != epoch {
		return false
	}
	s.chat = chat
	return true
}

// Chat returns the chat handle of the current analysis, if any
func (s *Session) Chat() (ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat, s.chat != nil
}

// ResetChat drops the chat handle
func (s *Session) ResetChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = nil
}

// touch marks the session as seen by a client
func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.now()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Step == StepAnalyzing || s.state.Chat.Pending {
		return true
	}
	for _, kind := range ReportKinds {
		if s.state.Reports.Status(kind) == StatusLoading {
			return true
		}
	}
	return false
}

// StoreOptions configures a Store
type StoreOptions struct {
	TTL             time.Duration
	MaxSessions     int
	CleanupInterval time.Duration
	Logger          *errors.Logger
	// Now overrides the clock, for tests
	Now func() time.Time
}

// Store keeps sessions in memory and evicts the ones idle for longer than TTL
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     StoreOptions
	done     chan struct{}
	once     sync.Once
}

// NewStore creates a store and starts its eviction goroutine
func NewStore(opts StoreOptions) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}

	st := &Store{
		sessions: make(map[string]*Session),
		opts:     opts,
		done:     make(chan struct{}),
	}
	go st.cleanupRoutine()
	return st
}

// Create starts a new session in the upload step
func (st *Store) Create() (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.opts.MaxSessions > 0 && len(st.sessions) >= st.opts.MaxSessions {
		return nil, errors.NewConflictError(errors.ErrCodeSessionLimit,
			fmt.Sprintf("session limit of %d reached", st.opts.MaxSessions), nil)
	}

	now := st.opts.Now()
	id := uuid.NewString()
	s := &Session{state: New(id, now), lastSeen: now, now: st.opts.Now}
	st.sessions[id] = s
	return s, nil
}

// Get returns the session with the given id and refreshes its idle timer
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, errors.NewNotFoundError(errors.ErrCodeSessionNotFound,
			fmt.Sprintf("session %q not found", id), nil)
	}
	s.touch()
	return s, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Len returns the number of live sessions
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *Store) cleanupRoutine() {
	ticker := time.NewTicker(st.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st.Evict()
		case <-st.done:
			return
		}
	}
}

// Evict removes sessions idle for longer than TTL. Sessions with work in
// flight are kept. It returns the number of evicted sessions.
func (st *Store) Evict() int {
	if st.opts.TTL <= 0 {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.opts.Now()
	evicted := 0
	for id, s := range st.sessions {
		if now.Sub(s.idleSince()) > st.opts.TTL && !s.busy() {
			delete(st.sessions, id)
			evicted++
		}
	}

	if st.opts.Logger != nil && evicted > 0 {
		st.opts.Logger.Debug("Session cleanup completed",
			"evicted", evicted,
			"remaining_sessions", len(st.sessions))
	}
	return evicted
}

// Close stops the eviction goroutine
func (st *Store) Close() {
	st.once.Do(func() { close(st.done) })
}
