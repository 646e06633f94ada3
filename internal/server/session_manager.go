package server

import (
	"sync"
)

type SessionInfo struct {
	Token    string
	RoomCode string
	Seat     int
	Name     string
}

// SessionManager is the process-wide token index. A token resolves only while
// its room exists.
type SessionManager struct {
	sessions map[string]SessionInfo // Token -> SessionInfo
	mu       sync.RWMutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]SessionInfo),
	}
}

func (sm *SessionManager) StoreSession(info SessionInfo) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[info.Token] = info
}

func (sm *SessionManager) GetSession(token string) (SessionInfo, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[token]
	if !exists {
		return SessionInfo{}, ErrInvalidCredential
	}

	return session, nil
}

// RemoveRoom drops every token issued for roomCode and returns them.
func (sm *SessionManager) RemoveRoom(roomCode string) []string {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var removed []string
	for token, session := range sm.sessions {
		if session.RoomCode == roomCode {
			delete(sm.sessions, token)
			removed = append(removed, token)
		}
	}
	return removed
}

func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
