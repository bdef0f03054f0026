package session

import "sync"

// TokenStore holds the identity tokens the client authenticates with.
type TokenStore interface {
	Token() string
	UserID() string
	Role() string
	Set(token, userID, role string)
	Clear()
}

// MemoryTokenStore keeps credentials for the lifetime of the process.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	token  string
	userID string
	role   string
}

// NewMemoryTokenStore returns an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryTokenStore) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *MemoryTokenStore) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *MemoryTokenStore) Set(token, userID, role string) {
	s.mu.Lock()
	s.token, s.userID, s.role = token, userID, role
	s.mu.Unlock()
}

// Clear drops every identity token.
func (s *MemoryTokenStore) Clear() {
	s.Set("", "", "")
}
