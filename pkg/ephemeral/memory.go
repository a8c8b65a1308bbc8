package ephemeral

import (
	"context"
	"sort"
	"sync"
)

type memoryStore struct {
	mu sync.Mutex
	// connections per user
	presence map[string]int
	// channelKey -> userID -> username
	typing map[string]map[string]string
}

// NewMemoryStore returns a process-local Store.
func NewMemoryStore() Store {
	return &memoryStore{
		presence: make(map[string]int),
		typing:   make(map[string]map[string]string),
	}
}

func (s *memoryStore) Connect(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.presence[userID]++
	return s.presence[userID] == 1, nil
}

func (s *memoryStore) Disconnect(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.presence[userID]
	if !ok {
		return false, nil
	}
	if n <= 1 {
		delete(s.presence, userID)
		return true, nil
	}
	s.presence[userID] = n - 1
	return false, nil
}

func (s *memoryStore) OnlineUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]string, 0, len(s.presence))
	for id := range s.presence {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

func (s *memoryStore) IsOnline(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.presence[userID] > 0, nil
}

func (s *memoryStore) SetTyping(_ context.Context, channelKey, userID, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.typing[channelKey]
	if !ok {
		users = make(map[string]string)
		s.typing[channelKey] = users
	}
	_, existed := users[userID]
	users[userID] = username
	return !existed, nil
}

func (s *memoryStore) ClearTyping(_ context.Context, channelKey, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.clearTypingLocked(channelKey, userID), nil
}

func (s *memoryStore) clearTypingLocked(channelKey, userID string) bool {
	users, ok := s.typing[channelKey]
	if !ok {
		return false
	}
	if _, ok := users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(s.typing, channelKey)
	}
	return true
}

func (s *memoryStore) TypingUsers(_ context.Context, channelKey string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.typing[channelKey]))
	for id, name := range s.typing[channelKey] {
		out[id] = name
	}
	return out, nil
}

func (s *memoryStore) ClearUser(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for key := range s.typing {
		if s.clearTypingLocked(key, userID) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memoryStore) Close() error { return nil }
