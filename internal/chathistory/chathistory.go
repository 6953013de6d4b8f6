// Package chathistory keeps a bounded rolling conversation history per user.
// History lives only for the process lifetime; a restart discards it.
package chathistory

import (
	"sync"

	"github.com/level5vta-creator/ejdevassistant-bot/llm"
)

// DefaultCap is the number of turns kept per user.
const DefaultCap = 10

type userHistory struct {
	mu    sync.Mutex
	turns []llm.Message
}

// Store maps a user ID to an ordered sequence of role-tagged turns. Mutation
// is serialized per user; operations on different users do not contend beyond
// the map lookup.
type Store struct {
	mu    sync.Mutex
	cap   int
	users map[int64]*userHistory
}

func New(cap int) *Store {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Store{
		cap:   cap,
		users: make(map[int64]*userHistory),
	}
}

func (s *Store) user(userID int64) *userHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = &userHistory{}
		s.users[userID] = u
	}
	return u
}

// Append pushes turn to the end of the user's history, evicts oldest turns
// past the cap, and returns a snapshot of the result.
func (s *Store) Append(userID int64, turn llm.Message) []llm.Message {
	u := s.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.turns = append(u.turns, turn)
	if n := len(u.turns); n > s.cap {
		u.turns = append(u.turns[:0:0], u.turns[n-s.cap:]...)
	}
	return append([]llm.Message(nil), u.turns...)
}

// Get returns a snapshot of the user's history, empty if absent.
func (s *Store) Get(userID int64) []llm.Message {
	s.mu.Lock()
	u, ok := s.users[userID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]llm.Message(nil), u.turns...)
}

// Reset drops the user's history.
func (s *Store) Reset(userID int64) {
	s.mu.Lock()
	delete(s.users, userID)
	s.mu.Unlock()
}
