// Package cache holds the last known list of users shared between the data
// client and whoever renders it.
package cache

import (
	"slices"
	"sync"

	"github.com/eion/userdesk/internal/users"
)

// UserList is a single-writer, multi-reader container for the most recently
// loaded users. The list is only ever replaced as a whole.
type UserList struct {
	// notifyMu serializes replacements with their notifications so that
	// subscribers see snapshots in replacement order.
	notifyMu    sync.Mutex
	mu          sync.RWMutex
	users       []users.User
	subscribers map[int]func([]users.User)
	nextID      int
	closed      bool
}

// NewUserList creates an empty container.
func NewUserList() *UserList {
	return &UserList{
		users:       []users.User{},
		subscribers: make(map[int]func([]users.User)),
	}
}

// Replace swaps in a new list and notifies subscribers with a copy of it.
// Subscribers must not call Replace or Subscribe.
func (l *UserList) Replace(list []users.User) {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.users = slices.Clone(list)
	if l.users == nil {
		l.users = []users.User{}
	}
	subs := make([]func([]users.User), 0, len(l.subscribers))
	for _, fn := range l.subscribers {
		subs = append(subs, fn)
	}
	snapshot := l.users
	l.mu.Unlock()

	for _, fn := range subs {
		fn(slices.Clone(snapshot))
	}
}

// Snapshot returns a copy of the current list.
func (l *UserList) Snapshot() []users.User {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.users)
}

// Subscribe registers fn for future replacements and immediately calls it
// with the current list. The returned function removes the subscription.
func (l *UserList) Subscribe(fn func([]users.User)) func() {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return func() {}
	}
	id := l.nextID
	l.nextID++
	l.subscribers[id] = fn
	current := slices.Clone(l.users)
	l.mu.Unlock()

	fn(current)

	return func() {
		l.mu.Lock()
		delete(l.subscribers, id)
		l.mu.Unlock()
	}
}

// Close drops all subscribers. Later replacements are ignored.
func (l *UserList) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.subscribers = make(map[int]func([]users.User))
}
