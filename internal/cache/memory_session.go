package cache

import (
	"context"
	"strings"
	"sync"
)

// MemorySessions keeps every session in one process-local map.
type MemorySessions struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemorySessions returns an empty in-memory backend.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{data: make(map[string][]byte)}
}

// Session returns the store of session id.
func (m *MemorySessions) Session(id string) *MemorySession {
	return &MemorySession{backend: m, session: id}
}

// MemorySession is a session store over MemorySessions.
type MemorySession struct {
	backend *MemorySessions
	session string
}

func (s *MemorySession) Has(_ context.Context, key string) (bool, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	_, ok := s.backend.data[SessionKey(s.session, key)]
	return ok, nil
}

func (s *MemorySession) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	data, ok := s.backend.data[SessionKey(s.session, key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (s *MemorySession) Put(_ context.Context, key string, data []byte) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	if s.backend.data == nil {
		s.backend.data = make(map[string][]byte)
	}
	s.backend.data[SessionKey(s.session, key)] = append([]byte(nil), data...)
	return nil
}

func (s *MemorySession) Remove(_ context.Context, key string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	delete(s.backend.data, SessionKey(s.session, key))
	return nil
}

func (s *MemorySession) Forget(_ context.Context, prefix string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	full := SessionKey(s.session, prefix)
	for k := range s.backend.data {
		if strings.HasPrefix(k, full) {
			delete(s.backend.data, k)
		}
	}
	return nil
}
