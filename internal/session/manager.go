// Package session tracks per-caller conversation history as a rolling window
// of question/answer exchanges.
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Exchange is one completed question/answer pair.
type Exchange struct {
	Query  string
	Answer string
}

// Manager is an in-memory session store, safe for concurrent use. Each
// session keeps only its most recent maxHistory exchanges.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string][]Exchange
	maxHistory int
}

// NewManager creates a Manager keeping up to maxHistory exchanges per session.
func NewManager(maxHistory int) *Manager {
	if maxHistory <= 0 {
		maxHistory = 2
	}
	return &Manager{
		sessions:   make(map[string][]Exchange),
		maxHistory: maxHistory,
	}
}

// CreateSession allocates a new session and returns its id.
func (m *Manager) CreateSession() string {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = nil
	m.mu.Unlock()
	return id
}

// AddExchange appends a question/answer pair to the session, trimming it to
// the most recent maxHistory exchanges. Unknown session ids are created
// implicitly.
func (m *Manager) AddExchange(sessionID, query, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exchanges := append(m.sessions[sessionID], Exchange{Query: query, Answer: answer})
	if len(exchanges) > m.maxHistory {
		exchanges = exchanges[len(exchanges)-m.maxHistory:]
	}
	m.sessions[sessionID] = exchanges
}

// GetHistory returns the session's exchanges formatted for inclusion in a
// system prompt, or "" for an unknown or empty session.
func (m *Manager) GetHistory(sessionID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exchanges := m.sessions[sessionID]
	if len(exchanges) == 0 {
		return ""
	}
	lines := make([]string, 0, len(exchanges))
	for _, e := range exchanges {
		lines = append(lines, fmt.Sprintf("User: %s\nAssistant: %s", e.Query, e.Answer))
	}
	return strings.Join(lines, "\n")
}

// Delete removes a session. Deleting an unknown id is a no-op.
func (m *Manager) Delete(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}
