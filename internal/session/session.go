package session

import "sync"

// Token identifies the store and request generation an async operation was
// started for. Results are committed only while the token is still current.
type Token struct {
	StoreID    string
	Generation uint64
}

type Session struct {
	mu         sync.RWMutex
	storeID    string
	generation uint64
}

func New(storeID string) *Session {
	s := &Session{}
	if storeID != "" {
		s.storeID = storeID
		s.generation = 1
	}
	return s
}

// Switch makes storeID the active store and starts a new generation.
// Switching to the already active store keeps the current token.
func (s *Session) Switch(storeID string) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	if storeID == s.storeID && s.generation > 0 {
		return Token{StoreID: s.storeID, Generation: s.generation}
	}
	s.storeID = storeID
	s.generation++
	return Token{StoreID: s.storeID, Generation: s.generation}
}

func (s *Session) Token() Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Token{StoreID: s.storeID, Generation: s.generation}
}

func (s *Session) ActiveStoreID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.storeID
}

func (s *Session) IsCurrent(token Token) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.storeID != "" && token.StoreID == s.storeID && token.Generation == s.generation
}
