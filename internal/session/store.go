package session

import (
	"sort"
	"sync"
)

// Store indexes the open sessions by id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

func (st *Store) Add(s *Session) {
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
}

func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

func (st *Store) Remove(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Children returns the sessions opened from an entry of parentID.
func (st *Store) Children(parentID string) []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	var ret []*Session
	for _, s := range st.sessions {
		if s.ParentID == parentID {
			ret = append(ret, s)
		}
	}
	return ret
}

// List returns the open sessions ordered by archive path.
func (st *Store) List() []*Session {
	st.mu.RLock()
	ret := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		ret = append(ret, s)
	}
	st.mu.RUnlock()
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Info.Path < ret[j].Info.Path
	})
	return ret
}
