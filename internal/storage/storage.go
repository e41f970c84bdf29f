package storage

import (
	"sort"
	"sync"

	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

// DefaultCapacity bounds how many captures are kept in memory
const DefaultCapacity = 100

// SessionStore keeps recent captures in memory. The oldest session is
// evicted once capacity is reached.
type SessionStore struct {
	sessions map[string]*models.CaptureSession
	capacity int
	mu       sync.RWMutex
}

func New(capacity int) *SessionStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SessionStore{
		sessions: make(map[string]*models.CaptureSession),
		capacity: capacity,
	}
}

func (s *SessionStore) Get(sessionID string) (*models.CaptureSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *SessionStore) Set(session *models.CaptureSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; !exists && len(s.sessions) >= s.capacity {
		s.evictOldest()
	}
	s.sessions[session.ID] = session
}

// List returns sessions newest first
func (s *SessionStore) List() []*models.CaptureSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.CaptureSession, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// must hold mu
func (s *SessionStore) evictOldest() {
	var oldestID string
	for id, session := range s.sessions {
		if oldestID == "" || session.CreatedAt.Before(s.sessions[oldestID].CreatedAt) {
			oldestID = id
		}
	}
	delete(s.sessions, oldestID)
}
