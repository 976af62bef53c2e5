// Package session holds per-user conversation state: message history
// and the selected completion model. Everything lives in memory and is
// lost on restart.
package session

import (
	"sync"

	"github.com/kan140979/Proleum-Pro-Bot/internal/ai"
)

// Models is the closed set of selectable completion models. The first
// entry is the default for users who never picked one.
var Models = []string{
	"gpt-3.5-turbo-1106",
	"gpt-4o",
	"gpt-4o-mini",
}

// IsModel reports whether text exactly names a selectable model.
func IsModel(text string) bool {
	for _, m := range Models {
		if text == m {
			return true
		}
	}
	return false
}

// Store maps user ids to conversation histories and model selections.
// A history entry exists only while the user has an open conversation;
// Clear removes the history but keeps the model choice.
type Store struct {
	mu        sync.Mutex
	histories map[int64][]ai.Message
	models    map[int64]string
}

func NewStore() *Store {
	return &Store{
		histories: make(map[int64][]ai.Message),
		models:    make(map[int64]string),
	}
}

// Append records one turn for the user, creating the history if needed.
func (s *Store) Append(userID int64, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[userID] = append(s.histories[userID], ai.Message{Role: role, Content: content})
}

// History returns a copy of the user's history, nil if none exists.
func (s *Store) History(userID int64) []ai.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.histories[userID]
	if !ok {
		return nil
	}
	out := make([]ai.Message, len(h))
	copy(out, h)
	return out
}

// Clear drops the user's history. The model selection survives. Safe to
// call for users with no history.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, userID)
}

// Select stores text as the user's model iff it names a known model.
func (s *Store) Select(userID int64, text string) bool {
	if !IsModel(text) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[userID] = text
	return true
}

// Current returns the user's selected model, or the default.
func (s *Store) Current(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.models[userID]; ok {
		return m
	}
	return Models[0]
}
