package service

import "sync"

// chatLocks serializes message sends per chat so broadcast order matches
// persistence order. Entries are reference counted and dropped once the last
// holder releases, so idle chats cost nothing.
type chatLocks struct {
	mu    sync.Mutex
	locks map[int]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func newChatLocks() *chatLocks {
	return &chatLocks{locks: make(map[int]*chatLock)}
}

// acquire blocks until the chat's lock is held and returns the release func.
func (l *chatLocks) acquire(chatID int) func() {
	l.mu.Lock()
	entry, ok := l.locks[chatID]
	if !ok {
		entry = &chatLock{}
		l.locks[chatID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, chatID)
		}
		l.mu.Unlock()
	}
}
