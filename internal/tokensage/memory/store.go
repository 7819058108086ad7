package memory

import (
	"sync"
	"time"
)

// Store is the read/write interface for the three key-spaces (conversation
// contexts, user preferences, session counters). Implementations must be safe
// for concurrent use. The pipeline depends only on this interface so an
// alternative backing (e.g. a networked cache) can be swapped in without
// touching the pipeline.
type Store interface {
	// Context returns a snapshot of the user's conversation context, or nil
	// when none exists. A context whose LastUpdated is older than ContextTTL
	// is purged on this read and reported as absent.
	Context(userID string) *ConversationContext

	// PutContext stores a copy of c for the user, stamping LastUpdated.
	PutContext(userID string, c *ConversationContext)

	// DeleteContext removes the user's context. No-op when absent.
	DeleteContext(userID string)

	// Preferences returns a snapshot of the user's preferences, or nil when
	// the user never set any.
	Preferences(userID string) *UserPreferences

	// MergePreferences folds p into the user's stored preferences, creating
	// them on first update. Preferences never expire.
	MergePreferences(userID string, p UserPreferences)

	// Session returns a snapshot of the session's counters, or nil when the
	// session is unknown.
	Session(sessionID string) *SessionData

	// RecordQuery bumps the session's query counter, creating the session on
	// first use.
	RecordQuery(sessionID string)

	// RecordAPICall bumps the session's API-call counter.
	RecordAPICall(sessionID string)

	// RecordError appends msg to the session's bounded error log.
	RecordError(sessionID string, msg string)

	// Sweep purges contexts idle past ContextTTL and sessions idle past
	// SessionIdleTTL, returning how many of each were removed. Entries still
	// inside their TTL are left untouched.
	Sweep(now time.Time) (contexts, sessions int)
}

// InMemoryStore is the process-lifetime map-backed Store. The zero value is
// not usable; construct with NewInMemoryStore.
type InMemoryStore struct {
	mu       sync.Mutex
	contexts map[string]*ConversationContext
	prefs    map[string]*UserPreferences
	sessions map[string]*SessionData

	// now is injectable for deterministic tests; defaults to time.Now.
	now func() time.Time
}

// NewInMemoryStore returns an empty in-memory store using the wall clock.
func NewInMemoryStore() *InMemoryStore {
	return NewInMemoryStoreAt(time.Now)
}

// NewInMemoryStoreAt returns an empty store reading time from now. Tests use
// this to substitute a deterministic clock.
func NewInMemoryStoreAt(now func() time.Time) *InMemoryStore {
	return &InMemoryStore{
		contexts: make(map[string]*ConversationContext),
		prefs:    make(map[string]*UserPreferences),
		sessions: make(map[string]*SessionData),
		now:      now,
	}
}

// Context returns a snapshot of the user's context, lazily purging it when
// its TTL has lapsed.
func (s *InMemoryStore) Context(userID string) *ConversationContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contexts[userID]
	if !ok {
		return nil
	}
	if s.now().Sub(c.LastUpdated) > ContextTTL {
		delete(s.contexts, userID)
		return nil
	}
	return snapshotContext(c)
}

// PutContext stores a copy of c, stamping LastUpdated with the store clock.
func (s *InMemoryStore) PutContext(userID string, c *ConversationContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := snapshotContext(c)
	cp.LastUpdated = s.now()
	s.contexts[userID] = cp
}

// DeleteContext removes the user's context.
func (s *InMemoryStore) DeleteContext(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, userID)
}

// Preferences returns a snapshot of the user's preferences or nil.
func (s *InMemoryStore) Preferences(userID string) *UserPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prefs[userID]
	if !ok {
		return nil
	}
	return snapshotPreferences(p)
}

// MergePreferences folds p into the stored preferences, creating the record
// on first update.
func (s *InMemoryStore) MergePreferences(userID string, p UserPreferences) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.prefs[userID]
	if !ok {
		existing = &UserPreferences{}
		s.prefs[userID] = existing
	}
	existing.merge(p)
}

// Session returns a snapshot of the session's counters or nil.
func (s *InMemoryStore) Session(sessionID string) *SessionData {
	s.mu.Lock()
	defer s.mu.Unlock()

	sd, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	cp := *sd
	cp.Errors = append([]SessionError(nil), sd.Errors...)
	return &cp
}

// RecordQuery bumps the query counter, creating the session on first use.
func (s *InMemoryStore) RecordQuery(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sd := s.sessionLocked(sessionID)
	sd.QueryCount++
	sd.LastActivity = s.now()
}

// RecordAPICall bumps the API-call counter.
func (s *InMemoryStore) RecordAPICall(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sd := s.sessionLocked(sessionID)
	sd.APICalls++
	sd.LastActivity = s.now()
}

// RecordError appends to the session's error log, keeping the newest
// MaxSessionErrors entries.
func (s *InMemoryStore) RecordError(sessionID string, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sd := s.sessionLocked(sessionID)
	sd.Errors = append(sd.Errors, SessionError{At: s.now(), Message: msg})
	if len(sd.Errors) > MaxSessionErrors {
		excess := len(sd.Errors) - MaxSessionErrors
		sd.Errors = sd.Errors[excess:]
	}
	sd.LastActivity = s.now()
}

// Sweep removes expired contexts and idle sessions.
func (s *InMemoryStore) Sweep(now time.Time) (contexts, sessions int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.contexts {
		if now.Sub(c.LastUpdated) > ContextTTL {
			delete(s.contexts, id)
			contexts++
		}
	}
	for id, sd := range s.sessions {
		if now.Sub(sd.LastActivity) > SessionIdleTTL {
			delete(s.sessions, id)
			sessions++
		}
	}
	return contexts, sessions
}

// sessionLocked returns the live session record, creating it on first use.
// Must be called with mu held.
func (s *InMemoryStore) sessionLocked(sessionID string) *SessionData {
	sd, ok := s.sessions[sessionID]
	if !ok {
		now := s.now()
		sd = &SessionData{StartedAt: now, LastActivity: now}
		s.sessions[sessionID] = sd
	}
	return sd
}

// snapshotContext returns a deep copy of c so callers cannot mutate stored
// state except through store methods.
func snapshotContext(c *ConversationContext) *ConversationContext {
	cp := *c
	cp.RecentQueries = append([]string(nil), c.RecentQueries...)
	cp.LastTokensDiscussed = append([]DiscussedToken(nil), c.LastTokensDiscussed...)
	cp.ConversationFlow = append([]ConversationStep(nil), c.ConversationFlow...)
	return &cp
}

func snapshotPreferences(p *UserPreferences) *UserPreferences {
	cp := *p
	cp.FavoriteTokens = append([]string(nil), p.FavoriteTokens...)
	cp.PreferredSectors = append([]string(nil), p.PreferredSectors...)
	if p.Notifications != nil {
		cp.Notifications = make(map[string]bool, len(p.Notifications))
		for k, v := range p.Notifications {
			cp.Notifications[k] = v
		}
	}
	return &cp
}
