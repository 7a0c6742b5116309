// Package conversation tracks the intake dialogue of each chat and turns
// commands and free text into replies, submissions and admin actions.
package conversation

import (
	"sync"
	"time"
)

type Step string

const (
	StepNew        Step = "NEW"
	StepCollecting Step = "COLLECTING"
	StepReady      Step = "READY_TO_SUBMIT"
	StepSubmitted  Step = "SUBMITTED"
)

const (
	FieldProjectName = "projectName"
	FieldContract    = "contract"
	FieldWebsite     = "website"
	FieldSocials     = "socials"
	FieldDescription = "description"
)

const DefaultTTL = 24 * time.Hour

type State struct {
	ChatID    int64
	Step      Step
	Info      map[string]string
	StartedAt time.Time
	UpdatedAt time.Time
}

func (s State) clone() State {
	info := make(map[string]string, len(s.Info))
	for k, v := range s.Info {
		info[k] = v
	}
	s.Info = info
	return s
}

// Store keeps one State per chat. Records idle longer than ttl read as absent.
// Callers serialize access per chat; the mutex only protects the map.
type Store struct {
	mu     sync.Mutex
	ttl    time.Duration
	states map[int64]State
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{ttl: ttl, states: map[int64]State{}}
}

func (s *Store) Get(chatID int64, now time.Time) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[chatID]
	if !ok {
		return State{}, false
	}
	if now.Sub(st.UpdatedAt) > s.ttl {
		delete(s.states, chatID)
		return State{}, false
	}
	return st.clone(), true
}

func (s *Store) Put(st State) {
	s.mu.Lock()
	s.states[st.ChatID] = st.clone()
	s.mu.Unlock()
}

func (s *Store) Delete(chatID int64) {
	s.mu.Lock()
	delete(s.states, chatID)
	s.mu.Unlock()
}

// Sweep drops idle records and reports how many went.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, st := range s.states {
		if now.Sub(st.UpdatedAt) > s.ttl {
			delete(s.states, id)
			n++
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
