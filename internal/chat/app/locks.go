package app

import "sync"

// conversationLocks hands out one mutex per conversation so that writes to a
// conversation's last-message snapshot and unread counters are serialized
// without a single global lock. Entries are refcounted and dropped once the
// last holder releases.
type conversationLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{entries: make(map[string]*lockEntry)}
}

// Acquire blocks until the caller holds the conversation's mutex. The
// returned func releases it.
func (l *conversationLocks) Acquire(conversationID string) func() {
	l.mu.Lock()
	e, ok := l.entries[conversationID]
	if !ok {
		e = &lockEntry{}
		l.entries[conversationID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, conversationID)
		}
		l.mu.Unlock()
	}
}
