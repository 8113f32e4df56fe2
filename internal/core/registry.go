package core

import (
	"sort"

	"github.com/amoylab/mdprovider/pkg/omm"
)

// SessionRegistry indexes the live client sessions by handle.
type SessionRegistry struct {
	sessions map[omm.Handle]*ClientSession
}

func newSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[omm.Handle]*ClientSession)}
}

func (r *SessionRegistry) add(s *ClientSession) {
	r.sessions[s.Handle()] = s
}

func (r *SessionRegistry) remove(h omm.Handle) bool {
	if _, ok := r.sessions[h]; !ok {
		return false
	}
	delete(r.sessions, h)
	return true
}

// Get returns the live session for h.
func (r *SessionRegistry) Get(h omm.Handle) (*ClientSession, bool) {
	s, ok := r.sessions[h]
	return s, ok
}

func (r *SessionRegistry) Len() int { return len(r.sessions) }

// List returns the live sessions, oldest first.
func (r *SessionRegistry) List() []*ClientSession {
	list := make([]*ClientSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].createdAt.Equal(list[j].createdAt) {
			return list[i].handle < list[j].handle
		}
		return list[i].createdAt.Before(list[j].createdAt)
	})
	return list
}
